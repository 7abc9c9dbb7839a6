package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"foodbridge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListingSearchParams captures the supported listing search filters.
type ListingSearchParams struct {
	Query    string
	Category string
	Status   models.ListingStatus
	DonorID  uint

	// Radius search. RadiusKm <= 0 disables it.
	Latitude  float64
	Longitude float64
	RadiusKm  float64

	Limit  int
	Offset int
}

// ListingRepository defines persistence operations for food listings.
type ListingRepository interface {
	GetByID(ctx context.Context, id uint) (*models.FoodListing, error)

	// GetByIDForUpdate loads the listing with a row lock. Use inside a
	// transaction to serialize claim attempts on the same listing.
	GetByIDForUpdate(ctx context.Context, id uint) (*models.FoodListing, error)

	Create(ctx context.Context, listing *models.FoodListing) error
	Update(ctx context.Context, listing *models.FoodListing) error
	Delete(ctx context.Context, id uint) error
	Search(ctx context.Context, params ListingSearchParams) ([]models.FoodListing, error)
	ListByDonor(ctx context.Context, donorID uint, limit, offset int) ([]models.FoodListing, error)

	// TryTransitionStatus updates the listing status only when the current
	// status matches `from`. It reports whether the row was actually updated,
	// so callers can detect lost races without locking.
	TryTransitionStatus(ctx context.Context, listingID uint, from, to models.ListingStatus) (bool, error)

	// SetStatus unconditionally moves a listing to the given status.
	SetStatus(ctx context.Context, listingID uint, to models.ListingStatus) error

	// ExpireOverdue marks available or requested listings whose expiry has
	// passed as expired and returns the IDs affected.
	ExpireOverdue(ctx context.Context, now time.Time) ([]uint, error)

	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) ListingRepository
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository returns a new ListingRepository implementation.
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) WithTx(tx *gorm.DB) ListingRepository {
	return &listingRepository{db: tx}
}

func (r *listingRepository) GetByID(ctx context.Context, id uint) (*models.FoodListing, error) {
	var listing models.FoodListing
	if err := r.db.WithContext(ctx).Preload("Donor").First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Listing", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &listing, nil
}

func (r *listingRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.FoodListing, error) {
	tx := r.db.WithContext(ctx)
	// sqlite has no SELECT FOR UPDATE; its single-writer lock serializes
	// claim transactions anyway.
	if tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var listing models.FoodListing
	if err := tx.First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Listing", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &listing, nil
}

func (r *listingRepository) Create(ctx context.Context, listing *models.FoodListing) error {
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *listingRepository) Update(ctx context.Context, listing *models.FoodListing) error {
	if err := r.db.WithContext(ctx).Save(listing).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *listingRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.FoodListing{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *listingRepository) Search(ctx context.Context, params ListingSearchParams) ([]models.FoodListing, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Model(&models.FoodListing{}).Where("is_active = ?", true)

	if params.Query != "" {
		like := "%" + params.Query + "%"
		q = q.Where("lower(title) LIKE lower(?) OR lower(description) LIKE lower(?)", like, like)
	}
	if params.Category != "" {
		q = q.Where("category = ?", params.Category)
	}
	if params.Status != "" {
		q = q.Where("status = ?", params.Status)
	}
	if params.DonorID != 0 {
		q = q.Where("donor_id = ?", params.DonorID)
	}

	radiusSearch := params.RadiusKm > 0
	if radiusSearch {
		// Coarse bounding box in SQL, precise Haversine filter below.
		latDelta := params.RadiusKm / 111.0
		lngDelta := params.RadiusKm / (111.0 * math.Cos(params.Latitude*math.Pi/180))
		q = q.Where("latitude BETWEEN ? AND ?", params.Latitude-latDelta, params.Latitude+latDelta).
			Where("longitude BETWEEN ? AND ?", params.Longitude-lngDelta, params.Longitude+lngDelta)
	}

	var listings []models.FoodListing
	if err := q.Preload("Donor").
		Order("created_at DESC").
		Limit(limit).
		Offset(params.Offset).
		Find(&listings).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	if radiusSearch {
		filtered := listings[:0]
		for _, l := range listings {
			if HaversineKm(params.Latitude, params.Longitude, l.Latitude, l.Longitude) <= params.RadiusKm {
				filtered = append(filtered, l)
			}
		}
		listings = filtered
	}

	return listings, nil
}

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func (r *listingRepository) ListByDonor(ctx context.Context, donorID uint, limit, offset int) ([]models.FoodListing, error) {
	if limit <= 0 {
		limit = 20
	}
	var listings []models.FoodListing
	if err := r.db.WithContext(ctx).
		Where("donor_id = ?", donorID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&listings).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return listings, nil
}

func (r *listingRepository) TryTransitionStatus(ctx context.Context, listingID uint, from, to models.ListingStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FoodListing{}).
		Where("id = ? AND status = ? AND is_active = ?", listingID, from, true).
		Update("status", to)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *listingRepository) SetStatus(ctx context.Context, listingID uint, to models.ListingStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.FoodListing{}).
		Where("id = ?", listingID).
		Update("status", to)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Listing", listingID)
	}
	return nil
}

func (r *listingRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.FoodListing{}).
		Where("status IN ? AND expires_at < ? AND is_active = ?",
			[]models.ListingStatus{models.ListingAvailable, models.ListingRequested}, now, true).
		Pluck("id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).
		Model(&models.FoodListing{}).
		Where("id IN ?", ids).
		Update("status", models.ListingExpired).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
