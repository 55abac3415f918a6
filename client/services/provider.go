package services

import (
	"github.com/lidofinance/qvault/client/modules/keystore"
	"github.com/lidofinance/qvault/client/modules/logger"
	"github.com/lidofinance/qvault/client/modules/state"
	"github.com/lidofinance/qvault/client/repositories/action"
	"github.com/lidofinance/qvault/ledger"
	"github.com/lidofinance/qvault/storage"
)

var provider ServiceProvider

// ServiceProvider carries the shared node collaborators. Tests inject mocks
// through the setters; the daemon fills the package-level instance once in
// InitServices.
type ServiceProvider struct {
	logger     logger.Logger
	state      state.State
	storage    storage.Storage
	keyStore   keystore.KeyStore
	executor   ledger.Executor
	actionRepo action.ActionRepo
}

func (p *ServiceProvider) SetLogger(l logger.Logger) {
	p.logger = l
}

func (p *ServiceProvider) GetLogger() logger.Logger {
	return p.logger
}

func (p *ServiceProvider) SetState(s state.State) {
	p.state = s
}

func (p *ServiceProvider) GetState() state.State {
	return p.state
}

func (p *ServiceProvider) SetStorage(s storage.Storage) {
	p.storage = s
}

func (p *ServiceProvider) GetStorage() storage.Storage {
	return p.storage
}

func (p *ServiceProvider) SetKeyStore(ks keystore.KeyStore) {
	p.keyStore = ks
}

func (p *ServiceProvider) GetKeyStore() keystore.KeyStore {
	return p.keyStore
}

func (p *ServiceProvider) SetExecutor(exec ledger.Executor) {
	p.executor = exec
}

func (p *ServiceProvider) GetExecutor() ledger.Executor {
	return p.executor
}

func (p *ServiceProvider) SetActionRepo(repo action.ActionRepo) {
	p.actionRepo = repo
}

func (p *ServiceProvider) GetActionRepo() action.ActionRepo {
	return p.actionRepo
}

func App() *ServiceProvider {
	return &provider
}
