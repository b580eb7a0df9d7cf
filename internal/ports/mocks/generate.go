//go:generate mockgen -source=../document_store.go  -destination=./mock_document_store.go  -package=mocks
//go:generate mockgen -source=../durable_storage.go -destination=./mock_durable_storage.go -package=mocks
//go:generate mockgen -source=../validator.go        -destination=./mock_validator.go        -package=mocks
//go:generate mockgen -source=../logger.go           -destination=./mock_logger.go           -package=mocks
//go:generate mockgen -source=../change_feed.go      -destination=./mock_change_feed.go      -package=mocks
//go:generate mockgen -source=../sync.go             -destination=./mock_sync.go             -package=mocks
//go:generate mockgen -source=../order_service.go    -destination=./mock_order_service.go    -package=mocks

package mocks
