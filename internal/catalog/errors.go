package catalog

import "errors"

// ErrNodeTypeNotFound — тип узла не зарегистрирован в каталоге.
var ErrNodeTypeNotFound = errors.New("node type not found")
