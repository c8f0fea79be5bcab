package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"creditengine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_CreateCategory(t *testing.T) {
	ctx := context.Background()
	factory, uow, repos := newMockUoW()
	svc := NewCatalogService(factory)

	repos.Categories.On("Create", ctx, mock.MatchedBy(func(c *models.CreditCategory) bool {
		return c.EventID == 7 && c.Code == "CLE" && len(c.JurisdictionCodes) == 1
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.CreditCategory).ID = 42
	}).Return(nil)

	category, err := svc.CreateCategory(ctx, CategoryInput{
		EventID:           7,
		Name:              "Continuing Legal Education",
		Code:              "CLE",
		JurisdictionCodes: []string{"NY"},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), category.ID)
	uow.AssertCalled(t, "Commit")
	repos.AssertExpectations(t)
}

func TestCatalogService_CreateCategory_InvalidInput(t *testing.T) {
	factory, _, repos := newMockUoW()
	svc := NewCatalogService(factory)

	_, err := svc.CreateCategory(context.Background(), CategoryInput{EventID: 7})

	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Name failed required")
	repos.Categories.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCatalogService_UpdateCategory_RejectsEventChange(t *testing.T) {
	ctx := context.Background()
	factory, uow, repos := newMockUoW()
	svc := NewCatalogService(factory)

	repos.Categories.On("GetByIDForUpdate", ctx, int64(3)).Return(&models.CreditCategory{ID: 3, EventID: 7}, nil)

	_, err := svc.UpdateCategory(ctx, 3, CategoryInput{EventID: 8, Name: "CPE", Code: "CPE"})

	assert.ErrorIs(t, err, models.ErrInvalidInput)
	repos.Categories.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	uow.AssertNotCalled(t, "Commit")
}

func TestCatalogService_UpdateCategory_ReplacesRestrictions(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newMockUoW()
	svc := NewCatalogService(factory)

	existing := &models.CreditCategory{ID: 3, EventID: 7, ProfileIDs: []int64{1, 2}}
	repos.Categories.On("GetByIDForUpdate", ctx, int64(3)).Return(existing, nil)
	repos.Categories.On("Update", ctx, existing).Return(nil)

	updated, err := svc.UpdateCategory(ctx, 3, CategoryInput{Name: "CPE", Code: "CPE", ProfileIDs: []int64{5}})

	require.NoError(t, err)
	assert.Equal(t, []int64{5}, updated.ProfileIDs)
	assert.Equal(t, int64(7), updated.EventID)
}

func TestCatalogService_ArchiveCategory_InUse(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newMockUoW()
	svc := NewCatalogService(factory)

	repos.Categories.On("GetByIDForUpdate", ctx, int64(3)).Return(&models.CreditCategory{ID: 3}, nil)
	repos.Categories.On("IsReferencedBySession", ctx, int64(3)).Return(true, nil)

	err := svc.ArchiveCategory(ctx, 3)

	assert.ErrorIs(t, err, models.ErrInUseConflict)
	repos.Categories.AssertNotCalled(t, "Archive", mock.Anything, mock.Anything)
}

func TestCatalogService_ArchivePackage_ArchivesGrants(t *testing.T) {
	ctx := context.Background()
	factory, uow, repos := newMockUoW()
	svc := NewCatalogService(factory)

	repos.Packages.On("Archive", ctx, int64(9)).Return(nil)
	repos.Grants.On("ArchiveByPackage", ctx, int64(9)).Return(int64(2), nil)

	err := svc.ArchivePackage(ctx, 9)

	require.NoError(t, err)
	uow.AssertNumberOfCalls(t, "Commit", 1)
	repos.AssertExpectations(t)
}

func TestCatalogService_ArchivePackage_NotFound(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newMockUoW()
	svc := NewCatalogService(factory)

	repos.Packages.On("Archive", ctx, int64(9)).Return(fmt.Errorf("award package 9: %w", models.ErrNotFound))

	err := svc.ArchivePackage(ctx, 9)

	assert.ErrorIs(t, err, models.ErrNotFound)
	repos.Grants.AssertNotCalled(t, "ArchiveByPackage", mock.Anything, mock.Anything)
}

func TestCatalogService_ArchiveCategory_NotFound(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newMockUoW()
	svc := NewCatalogService(factory)

	repos.Categories.On("GetByIDForUpdate", ctx, int64(3)).Return(nil, nil)

	err := svc.ArchiveCategory(ctx, 3)

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCatalogService_CreatePackage_LinksCategories(t *testing.T) {
	ctx := context.Background()
	factory, uow, repos := newMockUoW()
	svc := NewCatalogService(factory)

	repos.Packages.On("Create", ctx, mock.AnythingOfType("*models.AwardPackage")).Run(func(args mock.Arguments) {
		args.Get(1).(*models.AwardPackage).ID = 9
	}).Return(nil)
	repos.Categories.On("GetByIDForUpdate", ctx, int64(3)).Return(&models.CreditCategory{ID: 3, EventID: 7}, nil)
	repos.Packages.On("GetActivePackageForCategory", ctx, int64(3), int64(9)).Return(nil, nil)
	repos.Packages.On("LinkCategory", ctx, int64(9), int64(3)).Return(nil)

	pkg, err := svc.CreatePackage(ctx, PackageInput{
		EventID:             7,
		Name:                "Full credit",
		AttendanceCriterion: models.AttendanceSessionCheckIn,
		CategoryIDs:         []int64{3},
	})

	require.NoError(t, err)
	assert.Equal(t, []int64{3}, pkg.CategoryIDs)
	uow.AssertCalled(t, "Commit")
	repos.AssertExpectations(t)
}

func TestCatalogService_CreatePackage_UnknownCriterion(t *testing.T) {
	factory, _, _ := newMockUoW()
	svc := NewCatalogService(factory)

	_, err := svc.CreatePackage(context.Background(), PackageInput{
		EventID:             7,
		Name:                "Broken",
		AttendanceCriterion: "badge_scan",
	})

	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestCatalogService_LinkCategory(t *testing.T) {
	ctx := context.Background()
	active := &models.AwardPackage{ID: 9, EventID: 7}

	tests := []struct {
		name     string
		pkg      *models.AwardPackage
		category *models.CreditCategory
		other    *models.AwardPackage
		wantErr  error
	}{
		{name: "links free category", pkg: active, category: &models.CreditCategory{ID: 3, EventID: 7}},
		{name: "category already in another active package", pkg: active, category: &models.CreditCategory{ID: 3, EventID: 7}, other: &models.AwardPackage{ID: 10}, wantErr: models.ErrConfigurationConflict},
		{name: "category of another event", pkg: active, category: &models.CreditCategory{ID: 3, EventID: 8}, wantErr: models.ErrInvalidInput},
		{name: "archived category", pkg: active, category: &models.CreditCategory{ID: 3, EventID: 7, Archived: true}, wantErr: models.ErrInvalidInput},
		{name: "archived package", pkg: &models.AwardPackage{ID: 9, EventID: 7, Archived: true}, wantErr: models.ErrInvalidInput},
		{name: "missing category", pkg: active, wantErr: models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, uow, repos := newMockUoW()
			svc := NewCatalogService(factory)

			repos.Packages.On("GetByID", ctx, int64(9)).Return(tt.pkg, nil)
			if tt.category != nil {
				repos.Categories.On("GetByIDForUpdate", ctx, int64(3)).Return(tt.category, nil)
			} else {
				repos.Categories.On("GetByIDForUpdate", ctx, int64(3)).Return(nil, nil).Maybe()
			}
			if tt.other != nil {
				repos.Packages.On("GetActivePackageForCategory", ctx, int64(3), int64(9)).Return(tt.other, nil)
			} else {
				repos.Packages.On("GetActivePackageForCategory", ctx, int64(3), int64(9)).Return(nil, nil).Maybe()
			}
			repos.Packages.On("LinkCategory", ctx, int64(9), int64(3)).Return(nil).Maybe()

			err := svc.LinkCategory(ctx, 9, 3)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repos.Packages.AssertNotCalled(t, "LinkCategory", ctx, int64(9), int64(3))
				uow.AssertNotCalled(t, "Commit")
				return
			}
			require.NoError(t, err)
			repos.Packages.AssertCalled(t, "LinkCategory", ctx, int64(9), int64(3))
			uow.AssertCalled(t, "Commit")
		})
	}
}

func TestCatalogService_UnlinkCategory_NotLinked(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newMockUoW()
	svc := NewCatalogService(factory)

	repos.Packages.On("UnlinkCategory", ctx, int64(9), int64(3)).Return(false, nil)

	err := svc.UnlinkCategory(ctx, 9, 3)

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCatalogService_DeletePackage(t *testing.T) {
	ctx := context.Background()

	t.Run("refused once executed", func(t *testing.T) {
		factory, _, repos := newMockUoW()
		svc := NewCatalogService(factory)

		repos.Packages.On("GetByID", ctx, int64(9)).Return(&models.AwardPackage{ID: 9}, nil)
		repos.Packages.On("HasExecutions", ctx, int64(9)).Return(true, nil)

		err := svc.DeletePackage(ctx, 9)

		assert.ErrorIs(t, err, models.ErrInUseConflict)
		repos.Packages.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("deletes never-run package", func(t *testing.T) {
		factory, uow, repos := newMockUoW()
		svc := NewCatalogService(factory)

		repos.Packages.On("GetByID", ctx, int64(9)).Return(&models.AwardPackage{ID: 9}, nil)
		repos.Packages.On("HasExecutions", ctx, int64(9)).Return(false, nil)
		repos.Packages.On("Delete", ctx, int64(9)).Return(nil)

		require.NoError(t, svc.DeletePackage(ctx, 9))
		uow.AssertCalled(t, "Commit")
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		factory, _, repos := newMockUoW()
		svc := NewCatalogService(factory)

		dbErr := errors.New("connection reset")
		repos.Packages.On("GetByID", ctx, int64(9)).Return(nil, dbErr)

		err := svc.DeletePackage(ctx, 9)

		assert.ErrorIs(t, err, dbErr)
	})
}
