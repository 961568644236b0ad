package models

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PropertyStatus string

const (
	PropertyStatusAvailable PropertyStatus = "available"
	PropertyStatusOccupied  PropertyStatus = "occupied"
)

type Property struct {
	BaseModel
	OwnerId      uuid.UUID       `gorm:"type:char(36);index;not null" json:"owner_id"`
	Title        string          `gorm:"size:255;not null" json:"title"`
	Description  string          `gorm:"type:text" json:"description"`
	Address      string          `gorm:"size:500;not null" json:"address"`
	MonthlyRent  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"monthly_rent"`
	AreaSqm      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"area_sqm"`
	Status       PropertyStatus  `gorm:"size:16;index;not null" json:"status"`
	ImageUrl     string          `gorm:"size:1000" json:"image_url"`
	ThumbnailUrl string          `gorm:"size:1000" json:"thumbnail_url"`
}

type NewProperty struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Address     string          `json:"address" binding:"required"`
	MonthlyRent decimal.Decimal `json:"monthly_rent" binding:"required"`
	AreaSqm     decimal.Decimal `json:"area_sqm"`
}

// PropertyFilter bounds are inclusive.
type PropertyFilter struct {
	OwnerId *uuid.UUID
	Status  *PropertyStatus
	Search  string
	MinRent *decimal.Decimal
	MaxRent *decimal.Decimal
	MinArea *decimal.Decimal
	MaxArea *decimal.Decimal
}

func (f PropertyFilter) validate() error {
	if f.MinRent != nil && f.MaxRent != nil && f.MinRent.GreaterThan(*f.MaxRent) {
		return utils.BadRequestError("min_rent must not exceed max_rent")
	}
	if f.MinArea != nil && f.MaxArea != nil && f.MinArea.GreaterThan(*f.MaxArea) {
		return utils.BadRequestError("min_area must not exceed max_area")
	}
	return nil
}

func (f PropertyFilter) scope(db *gorm.DB) *gorm.DB {
	if f.OwnerId != nil {
		db = db.Where("owner_id = ?", *f.OwnerId)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		db = db.Where("title LIKE ?", "%"+s+"%")
	}
	if f.MinRent != nil {
		db = db.Where("monthly_rent >= ?", *f.MinRent)
	}
	if f.MaxRent != nil {
		db = db.Where("monthly_rent <= ?", *f.MaxRent)
	}
	if f.MinArea != nil {
		db = db.Where("area_sqm >= ?", *f.MinArea)
	}
	if f.MaxArea != nil {
		db = db.Where("area_sqm <= ?", *f.MaxArea)
	}
	return db
}

func (input *NewProperty) validate() error {
	if strings.TrimSpace(input.Title) == "" {
		return utils.BadRequestError("title is required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return utils.BadRequestError("address is required")
	}
	if !input.MonthlyRent.IsPositive() {
		return utils.BadRequestError("monthly rent must be greater than 0")
	}
	if input.AreaSqm.IsNegative() {
		return utils.BadRequestError("area must not be negative")
	}
	return nil
}

func CreateProperty(ctx context.Context, input *NewProperty) (*Property, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	property := Property{
		OwnerId:     c.Id,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Address:     strings.TrimSpace(input.Address),
		MonthlyRent: input.MonthlyRent,
		AreaSqm:     input.AreaSqm,
		Status:      PropertyStatusAvailable,
	}
	property.CreatedBy = c.Id

	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		owner, err := repository.For[Account](uow).GetById(ctx, c.Id)
		if err != nil {
			return err
		}
		if owner.Role != AccountRoleOwner {
			return utils.ForbiddenError("only owners can create properties")
		}
		if !owner.IsOwnerApproved {
			return utils.ForbiddenError("owner account is not approved yet")
		}
		return repository.For[Property](uow).Insert(ctx, &property)
	})
	if err != nil {
		return nil, err
	}
	return &property, nil
}

// UpdateProperty changes listing details. Status is driven by tenancies only.
func UpdateProperty(ctx context.Context, id uuid.UUID, input *NewProperty) (*Property, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var property *Property
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		properties := repository.For[Property](uow)
		property, err = properties.GetById(ctx, id)
		if err != nil {
			return err
		}
		if property.OwnerId != c.Id {
			return utils.ForbiddenError("only the owner can update this property")
		}
		property.Title = strings.TrimSpace(input.Title)
		property.Description = input.Description
		property.Address = strings.TrimSpace(input.Address)
		property.MonthlyRent = input.MonthlyRent
		property.AreaSqm = input.AreaSqm
		property.touch(c.Id)
		return properties.Update(ctx, property)
	})
	if err != nil {
		return nil, err
	}
	return property, nil
}

func DeleteProperty(ctx context.Context, id uuid.UUID) (*Property, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var property *Property
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		properties := repository.For[Property](uow)
		property, err = properties.GetById(ctx, id)
		if err != nil {
			return err
		}
		if property.OwnerId != c.Id {
			return utils.ForbiddenError("only the owner can delete this property")
		}
		if property.Status == PropertyStatusOccupied {
			return utils.ConflictError("property is occupied")
		}
		return properties.SoftDelete(ctx, property, c.Id)
	})
	if err != nil {
		return nil, err
	}
	return property, nil
}

func GetProperty(ctx context.Context, id uuid.UUID) (*Property, error) {
	if _, err := callerFromContext(ctx); err != nil {
		return nil, err
	}
	return readRepo[Property]().GetById(ctx, id)
}

func GetProperties(ctx context.Context, filter PropertyFilter, page repository.Pagination) (*repository.Page[Property], error) {
	if _, err := callerFromContext(ctx); err != nil {
		return nil, err
	}
	if err := filter.validate(); err != nil {
		return nil, err
	}
	return readRepo[Property]().Page(ctx, page, filter.scope, orderByNewest)
}

// SetPropertyImage uploads a listing photo and a thumbnail of it.
func SetPropertyImage(ctx context.Context, id uuid.UUID, fileName string, data []byte) (*Property, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > utils.MaxUploadSizeBytes {
		return nil, utils.BadRequestError("file size exceeds 5MB limit")
	}
	contentType := utils.DetectContentType(fileName, data)
	if !utils.ImageMimeTypes[contentType] {
		return nil, utils.BadRequestError("unsupported image type")
	}

	property, err := readRepo[Property]().GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if property.OwnerId != c.Id {
		return nil, utils.ForbiddenError("only the owner can change the property image")
	}

	thumb, err := utils.MakeThumbnail(data)
	if err != nil {
		return nil, utils.BadRequestError("image could not be decoded")
	}
	store := utils.GetObjectStorage()
	objectKey := utils.NewObjectKey("properties", id, filepath.Ext(fileName))
	imageUrl, err := store.Upload(ctx, objectKey, data, contentType)
	if err != nil {
		return nil, utils.InternalError("failed to upload image", err)
	}
	thumbnailUrl, err := store.Upload(ctx, utils.ThumbnailObjectKey(objectKey), thumb, "image/jpeg")
	if err != nil {
		return nil, utils.InternalError("failed to upload thumbnail", err)
	}

	oldImage, oldThumb := property.ImageUrl, property.ThumbnailUrl
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		properties := repository.For[Property](uow)
		property, err = properties.GetById(ctx, id)
		if err != nil {
			return err
		}
		property.ImageUrl = imageUrl
		property.ThumbnailUrl = thumbnailUrl
		property.touch(c.Id)
		return properties.Update(ctx, property)
	})
	if err != nil {
		return nil, err
	}
	for _, old := range []string{oldImage, oldThumb} {
		if key := utils.ExtractObjectKeyFromURL(old); key != "" {
			if err := store.Delete(ctx, key); err != nil {
				config.LogError(config.GetLogger().WithContext(ctx), "Property", "SetPropertyImage", "delete old image", key, err)
			}
		}
	}
	return property, nil
}

// setPropertyStatus keeps occupancy in sync with the tenancy lifecycle.
func setPropertyStatus(ctx context.Context, uow *repository.UnitOfWork, propertyId uuid.UUID, status PropertyStatus, actor uuid.UUID) error {
	properties := repository.For[Property](uow)
	property, err := properties.GetById(ctx, propertyId)
	if err != nil {
		return err
	}
	if property.Status == status {
		return nil
	}
	property.Status = status
	property.touch(actor)
	return properties.Update(ctx, property)
}
