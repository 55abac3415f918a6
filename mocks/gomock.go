package mocks

//go:generate mockgen -source=./../client/modules/state/state.go -destination=./clientMocks/state_mock.go -package=clientMocks
//go:generate mockgen -source=./../client/modules/keystore/keystore.go -destination=./clientMocks/keystore_mock.go -package=clientMocks
//go:generate mockgen -source=./../storage/types.go -destination=./storageMocks/storage_mock.go -package=storageMocks
//go:generate mockgen -source=./../ledger/executor.go -destination=./ledgerMocks/executor_mock.go -package=ledgerMocks
//go:generate mockgen -source=./../client/repositories/action/action.go -destination=./repoMocks/action_mock.go -package=repoMocks
