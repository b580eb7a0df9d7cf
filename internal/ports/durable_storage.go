package ports

// DurableStorage — строковое key/value хранилище, переживающее перезапуск.
// SetItem может вернуть apperr.ErrStorageFull при превышении квоты.
type DurableStorage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Keys() ([]string, error)
}
