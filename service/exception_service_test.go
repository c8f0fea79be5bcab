package service

import (
	"context"
	"testing"

	"creditengine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func exceptionInput() ExceptionInput {
	return ExceptionInput{
		ContestantID:  100,
		PackageID:     9,
		CategoryID:    10,
		SessionID:     200,
		Justification: "Attended remotely, verified by moderator",
		AdminUserID:   1,
	}
}

func TestExceptionService_AddException(t *testing.T) {
	ctx := context.Background()
	factory, uow, repos := newMockUoW()
	svc := NewExceptionService(factory)

	repos.Packages.On("GetByID", ctx, int64(9)).Return(&models.AwardPackage{ID: 9, CategoryIDs: []int64{10, 11}}, nil)
	repos.Exceptions.On("Upsert", ctx, mock.MatchedBy(func(e *models.AwardException) bool {
		return e.ContestantID == 100 && e.SessionID == 200 && e.CategoryID == 10 && e.AdminUserID == 1
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.AwardException).ID = 4
	}).Return(nil)

	exception, err := svc.AddException(ctx, exceptionInput())

	require.NoError(t, err)
	assert.Equal(t, int64(4), exception.ID)
	uow.AssertCalled(t, "Commit")
}

func TestExceptionService_AddException_CategoryOutsidePackage(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newMockUoW()
	svc := NewExceptionService(factory)

	repos.Packages.On("GetByID", ctx, int64(9)).Return(&models.AwardPackage{ID: 9, CategoryIDs: []int64{11}}, nil)

	_, err := svc.AddException(ctx, exceptionInput())

	assert.ErrorIs(t, err, models.ErrConfigurationConflict)
	repos.Exceptions.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestExceptionService_AddException_RequiresJustification(t *testing.T) {
	factory, _, _ := newMockUoW()
	svc := NewExceptionService(factory)

	input := exceptionInput()
	input.Justification = ""
	_, err := svc.AddException(context.Background(), input)

	assert.ErrorIs(t, err, models.ErrInvalidInput)
	factory.AssertNotCalled(t, "Create")
}

func TestExceptionService_DeleteException_NotFound(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newMockUoW()
	svc := NewExceptionService(factory)

	repos.Exceptions.On("Delete", ctx, int64(4)).Return(false, nil)

	err := svc.DeleteException(ctx, 4)

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestExceptionService_GetException(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newMockUoW()
	svc := NewExceptionService(factory)

	repos.Exceptions.On("GetByID", ctx, int64(4)).Return(&models.AwardException{ID: 4}, nil)
	repos.Exceptions.On("GetByID", ctx, int64(5)).Return(nil, nil)

	exception, err := svc.GetException(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), exception.ID)

	_, err = svc.GetException(ctx, 5)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
