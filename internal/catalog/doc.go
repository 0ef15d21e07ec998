// Package catalog содержит каталог типов узлов: встроенные определения
// (порты, схемы настроек) и алиасы устаревших ID.
//
// Catalog реализует engine.TypeResolver и используется для поиска trigger,
// проверки соединений и слияния настроек по умолчанию в исполнителях.
package catalog
