package repository

import (
	"context"
	"errors"

	"foodbridge/internal/models"

	"gorm.io/gorm"
)

// RequestRepository defines persistence operations for claim requests.
type RequestRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Request, error)
	Create(ctx context.Context, req *models.Request) error
	Update(ctx context.Context, req *models.Request) error
	ListByReceiver(ctx context.Context, receiverID uint, limit, offset int) ([]models.Request, error)
	ListByDonor(ctx context.Context, donorID uint, limit, offset int) ([]models.Request, error)
	ListByListing(ctx context.Context, listingID uint) ([]models.Request, error)

	// HasActiveRequest reports whether the receiver already holds a pending or
	// accepted request against the listing.
	HasActiveRequest(ctx context.Context, listingID, receiverID uint) (bool, error)

	// CountActive counts pending and accepted requests against the listing.
	CountActive(ctx context.Context, listingID uint) (int64, error)

	// SumActiveAmount totals the requested amounts of pending and accepted
	// requests against the listing.
	SumActiveAmount(ctx context.Context, listingID uint) (float64, error)

	// HasCompleted reports whether any request on the listing reached
	// completed.
	HasCompleted(ctx context.Context, listingID uint) (bool, error)

	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) RequestRepository
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository returns a new RequestRepository implementation.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) WithTx(tx *gorm.DB) RequestRepository {
	return &requestRepository{db: tx}
}

func (r *requestRepository) GetByID(ctx context.Context, id uint) (*models.Request, error) {
	var req models.Request
	if err := r.db.WithContext(ctx).
		Preload("FoodListing").
		Preload("Receiver").
		Preload("Donor").
		First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *requestRepository) Create(ctx context.Context, req *models.Request) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *requestRepository) Update(ctx context.Context, req *models.Request) error {
	if err := r.db.WithContext(ctx).Save(req).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *requestRepository) ListByReceiver(ctx context.Context, receiverID uint, limit, offset int) ([]models.Request, error) {
	if limit <= 0 {
		limit = 20
	}
	var reqs []models.Request
	if err := r.db.WithContext(ctx).
		Preload("FoodListing").
		Preload("Donor").
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *requestRepository) ListByDonor(ctx context.Context, donorID uint, limit, offset int) ([]models.Request, error) {
	if limit <= 0 {
		limit = 20
	}
	var reqs []models.Request
	if err := r.db.WithContext(ctx).
		Preload("FoodListing").
		Preload("Receiver").
		Where("donor_id = ?", donorID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *requestRepository) ListByListing(ctx context.Context, listingID uint) ([]models.Request, error) {
	var reqs []models.Request
	if err := r.db.WithContext(ctx).
		Preload("Receiver").
		Where("food_listing_id = ?", listingID).
		Order("created_at ASC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *requestRepository) HasActiveRequest(ctx context.Context, listingID, receiverID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("food_listing_id = ? AND receiver_id = ? AND status IN ?",
			listingID, receiverID,
			[]models.RequestStatus{models.RequestPending, models.RequestAccepted}).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *requestRepository) CountActive(ctx context.Context, listingID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("food_listing_id = ? AND status IN ?",
			listingID,
			[]models.RequestStatus{models.RequestPending, models.RequestAccepted}).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *requestRepository) SumActiveAmount(ctx context.Context, listingID uint) (float64, error) {
	var sum float64
	if err := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("food_listing_id = ? AND status IN ?",
			listingID,
			[]models.RequestStatus{models.RequestPending, models.RequestAccepted}).
		Select("COALESCE(SUM(requested_amount), 0)").
		Scan(&sum).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return sum, nil
}

func (r *requestRepository) HasCompleted(ctx context.Context, listingID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("food_listing_id = ? AND status = ?", listingID, models.RequestCompleted).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
