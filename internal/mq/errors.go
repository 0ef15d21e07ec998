package mq

import "errors"

var (
	// ErrNoChannel — соединение ещё не установлено или переподключается.
	ErrNoChannel = errors.New("no channel available")

	// ErrDeliveriesClosed — брокер закрыл канал доставки.
	ErrDeliveriesClosed = errors.New("deliveries channel closed")

	// ErrConnectionClosed — соединение закрыто вызовом Close.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrMissingType — в конверте сообщения нет поля type.
	ErrMissingType = errors.New("message type is missing")

	// ErrPermanent — обработчик не сможет обработать сообщение и при повторе.
	// Такие сообщения отправляются в DLQ без requeue.
	ErrPermanent = errors.New("permanent handler error")
)
