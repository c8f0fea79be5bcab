package service

import (
	"github.com/stretchr/testify/mock"
)

// newMockUoW wires a unit of work that can be begun, committed and rolled
// back any number of times
func newMockUoW() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockRepositories) {
	repos := NewMockRepositories()
	uow := new(MockUnitOfWork)
	uow.SetRepositories(repos)
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Commit").Return(nil).Maybe()
	uow.On("Rollback").Return(nil).Maybe()

	factory := new(MockUnitOfWorkFactory)
	factory.On("Create").Return(uow)
	return factory, uow, repos
}
