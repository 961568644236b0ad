package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"gorm.io/gorm"
)

// UtilityReading is one electric/water meter snapshot. The old indices of a
// reading are the new indices of the one before it, or the tenancy baseline.
type UtilityReading struct {
	BaseModel
	PropertyId       uuid.UUID `gorm:"type:char(36);index;not null" json:"property_id"`
	TenancyId        uuid.UUID `gorm:"type:char(36);index;not null" json:"tenancy_id"`
	ReadingDate      time.Time `gorm:"index;not null" json:"reading_date"`
	ElectricOldIndex int       `gorm:"not null" json:"electric_old_index"`
	ElectricNewIndex int       `gorm:"not null" json:"electric_new_index"`
	WaterOldIndex    int       `gorm:"not null" json:"water_old_index"`
	WaterNewIndex    int       `gorm:"not null" json:"water_new_index"`
	IsCharged        bool      `gorm:"not null;default:false" json:"is_charged"`
}

type NewUtilityReading struct {
	PropertyId       uuid.UUID  `json:"property_id" binding:"required"`
	TenancyId        uuid.UUID  `json:"tenancy_id" binding:"required"`
	ReadingDate      *time.Time `json:"reading_date"`
	ElectricNewIndex int        `json:"electric_new_index"`
	WaterNewIndex    int        `json:"water_new_index"`
}

type UtilityReadingUpdate struct {
	ElectricNewIndex int        `json:"electric_new_index"`
	WaterNewIndex    int        `json:"water_new_index"`
	ReadingDate      *time.Time `json:"reading_date"`
}

type UtilityReadingFilter struct {
	IsCharged *bool
	FromDate  *time.Time
	ToDate    *time.Time
}

type UtilityReadingResponse struct {
	UtilityReading
	ElectricUsage int `json:"electric_usage"`
	WaterUsage    int `json:"water_usage"`
}

func (r *UtilityReading) ElectricUsage() int {
	return r.ElectricNewIndex - r.ElectricOldIndex
}

func (r *UtilityReading) WaterUsage() int {
	return r.WaterNewIndex - r.WaterOldIndex
}

func (r *UtilityReading) response() UtilityReadingResponse {
	return UtilityReadingResponse{
		UtilityReading: *r,
		ElectricUsage:  r.ElectricUsage(),
		WaterUsage:     r.WaterUsage(),
	}
}

// validateIndices rejects a new index below its old index, naming the utility.
func validateIndices(electricOld, electricNew, waterOld, waterNew int) error {
	if electricNew < electricOld {
		return utils.BadRequestError("new electric index (%d) must be greater than or equal to old electric index (%d)", electricNew, electricOld)
	}
	if waterNew < waterOld {
		return utils.BadRequestError("new water index (%d) must be greater than or equal to old water index (%d)", waterNew, waterOld)
	}
	return nil
}

func newestReadingFirst(db *gorm.DB) *gorm.DB {
	return db.Order("reading_date desc").Order("created_at desc")
}

// latestReading returns nil when the tenancy has no readings.
func latestReading(ctx context.Context, readings repository.Repository[UtilityReading], tenancyId uuid.UUID, except ...uuid.UUID) (*UtilityReading, error) {
	reading, err := readings.First(ctx, whereEq("tenancy_id", tenancyId), func(db *gorm.DB) *gorm.DB {
		if len(except) > 0 {
			db = db.Where("id NOT IN ?", except)
		}
		return db
	}, newestReadingFirst)
	if utils.IsKind(err, utils.KindNotFound) {
		return nil, nil
	}
	return reading, err
}

// ensureLatestReading keeps the chain intact: only the newest reading of a
// tenancy may change its new indices or disappear.
func ensureLatestReading(ctx context.Context, readings repository.Repository[UtilityReading], reading *UtilityReading) error {
	latest, err := latestReading(ctx, readings, reading.TenancyId)
	if err != nil {
		return err
	}
	if latest != nil && latest.ID != reading.ID {
		return utils.ConflictError("a later reading exists for this tenancy")
	}
	return nil
}

func CreateUtilityReading(ctx context.Context, input *NewUtilityReading) (*UtilityReadingResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var reading UtilityReading
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		property, err := repository.For[Property](uow).GetById(ctx, input.PropertyId)
		if err != nil {
			return err
		}
		tenancy, err := repository.For[Tenancy](uow).GetById(ctx, input.TenancyId)
		if err != nil {
			return err
		}
		if tenancy.PropertyId != property.ID {
			return utils.BadRequestError("tenancy does not belong to this property")
		}
		if !tenancy.isParty(c.Id) {
			return utils.ForbiddenError("only the owner or tenant can record readings")
		}

		readingDate := nowUTC()
		if input.ReadingDate != nil {
			readingDate = input.ReadingDate.UTC()
		}
		readings := repository.For[UtilityReading](uow)
		reading, err = nextReading(ctx, readings, tenancy, readingDate, input.ElectricNewIndex, input.WaterNewIndex)
		if err != nil {
			return err
		}
		reading.CreatedBy = c.Id
		return readings.Insert(ctx, &reading)
	})
	if err != nil {
		return nil, err
	}
	resp := reading.response()
	return &resp, nil
}

// nextReading builds the reading that follows the tenancy's latest one.
func nextReading(ctx context.Context, readings repository.Repository[UtilityReading], tenancy *Tenancy, readingDate time.Time, electricNew, waterNew int) (UtilityReading, error) {
	electricOld, waterOld := tenancy.ElectricOldIndex, tenancy.WaterOldIndex
	latest, err := latestReading(ctx, readings, tenancy.ID)
	if err != nil {
		return UtilityReading{}, err
	}
	if latest != nil {
		if readingDate.Before(latest.ReadingDate) {
			return UtilityReading{}, utils.BadRequestError("reading date must not be before the previous reading (%s)", latest.ReadingDate.Format(time.RFC3339))
		}
		electricOld, waterOld = latest.ElectricNewIndex, latest.WaterNewIndex
	}
	if err := validateIndices(electricOld, electricNew, waterOld, waterNew); err != nil {
		return UtilityReading{}, err
	}
	return UtilityReading{
		PropertyId:       tenancy.PropertyId,
		TenancyId:        tenancy.ID,
		ReadingDate:      readingDate,
		ElectricOldIndex: electricOld,
		ElectricNewIndex: electricNew,
		WaterOldIndex:    waterOld,
		WaterNewIndex:    waterNew,
		IsCharged:        false,
	}, nil
}

func UpdateUtilityReading(ctx context.Context, id uuid.UUID, input *UtilityReadingUpdate) (*UtilityReadingResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var reading *UtilityReading
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		readings := repository.For[UtilityReading](uow)
		reading, err = readings.GetById(ctx, id)
		if err != nil {
			return err
		}
		if reading.IsCharged {
			return utils.ConflictError("reading has already been charged and cannot be changed")
		}
		tenancy, err := repository.For[Tenancy](uow).GetById(ctx, reading.TenancyId)
		if err != nil {
			return err
		}
		if !tenancy.isParty(c.Id) {
			return utils.ForbiddenError("only the owner or tenant can update readings")
		}
		if err := ensureLatestReading(ctx, readings, reading); err != nil {
			return err
		}
		if err := validateIndices(reading.ElectricOldIndex, input.ElectricNewIndex, reading.WaterOldIndex, input.WaterNewIndex); err != nil {
			return err
		}
		if input.ReadingDate != nil {
			readingDate := input.ReadingDate.UTC()
			previous, err := latestReading(ctx, readings, reading.TenancyId, reading.ID)
			if err != nil {
				return err
			}
			if previous != nil && readingDate.Before(previous.ReadingDate) {
				return utils.BadRequestError("reading date must not be before the previous reading (%s)", previous.ReadingDate.Format(time.RFC3339))
			}
			reading.ReadingDate = readingDate
		}
		reading.ElectricNewIndex = input.ElectricNewIndex
		reading.WaterNewIndex = input.WaterNewIndex
		reading.touch(c.Id)
		return readings.Update(ctx, reading)
	})
	if err != nil {
		return nil, err
	}
	resp := reading.response()
	return &resp, nil
}

func MarkUtilityReadingCharged(ctx context.Context, id uuid.UUID) (*UtilityReadingResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var reading *UtilityReading
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		readings := repository.For[UtilityReading](uow)
		reading, err = readings.GetById(ctx, id)
		if err != nil {
			return err
		}
		tenancy, err := repository.For[Tenancy](uow).GetById(ctx, reading.TenancyId)
		if err != nil {
			return err
		}
		if tenancy.OwnerId != c.Id {
			return utils.ForbiddenError("only the owner can mark readings as charged")
		}
		if reading.IsCharged {
			return utils.ConflictError("reading is already charged")
		}
		reading.IsCharged = true
		reading.touch(c.Id)
		return readings.Update(ctx, reading)
	})
	if err != nil {
		return nil, err
	}
	resp := reading.response()
	return &resp, nil
}

func DeleteUtilityReading(ctx context.Context, id uuid.UUID) (*UtilityReading, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var reading *UtilityReading
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		readings := repository.For[UtilityReading](uow)
		reading, err = readings.GetById(ctx, id)
		if err != nil {
			return err
		}
		tenancy, err := repository.For[Tenancy](uow).GetById(ctx, reading.TenancyId)
		if err != nil {
			return err
		}
		if tenancy.OwnerId != c.Id {
			return utils.ForbiddenError("only the owner can delete readings")
		}
		if reading.IsCharged {
			return utils.ConflictError("a charged reading cannot be deleted")
		}
		if err := ensureLatestReading(ctx, readings, reading); err != nil {
			return err
		}
		return readings.SoftDelete(ctx, reading, c.Id)
	})
	if err != nil {
		return nil, err
	}
	return reading, nil
}

func GetUtilityReading(ctx context.Context, id uuid.UUID) (*UtilityReadingResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	reading, err := readRepo[UtilityReading]().GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	tenancy, err := readRepo[Tenancy]().GetById(ctx, reading.TenancyId)
	if err != nil {
		return nil, err
	}
	if !tenancy.isParty(c.Id) {
		return nil, utils.ForbiddenError("you do not have access to this reading")
	}
	resp := reading.response()
	return &resp, nil
}

func GetUtilityReadingsByTenancy(ctx context.Context, tenancyId uuid.UUID, filter UtilityReadingFilter, page repository.Pagination) (*repository.Page[UtilityReadingResponse], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	tenancy, err := readRepo[Tenancy]().GetById(ctx, tenancyId)
	if err != nil {
		return nil, err
	}
	if !tenancy.isParty(c.Id) {
		return nil, utils.ForbiddenError("you do not have access to this tenancy")
	}
	result, err := readRepo[UtilityReading]().Page(ctx, page, whereEq("tenancy_id", tenancyId), filter.scope, newestReadingFirst)
	if err != nil {
		return nil, err
	}
	return repository.MapPage(result, (*UtilityReading).response), nil
}

// GetUtilityReadingsByProperty returns every reading to the owner and only
// the caller's own tenancies to a tenant.
func GetUtilityReadingsByProperty(ctx context.Context, propertyId uuid.UUID, filter UtilityReadingFilter, page repository.Pagination) (*repository.Page[UtilityReadingResponse], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	access, err := propertyReadingAccess(ctx, c, propertyId)
	if err != nil {
		return nil, err
	}
	result, err := readRepo[UtilityReading]().Page(ctx, page, whereEq("property_id", propertyId), access, filter.scope, newestReadingFirst)
	if err != nil {
		return nil, err
	}
	return repository.MapPage(result, (*UtilityReading).response), nil
}

func GetLatestUtilityReading(ctx context.Context, propertyId uuid.UUID) (*UtilityReadingResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	access, err := propertyReadingAccess(ctx, c, propertyId)
	if err != nil {
		return nil, err
	}
	reading, err := readRepo[UtilityReading]().First(ctx, whereEq("property_id", propertyId), access, newestReadingFirst)
	if err != nil {
		return nil, err
	}
	resp := reading.response()
	return &resp, nil
}

func propertyReadingAccess(ctx context.Context, c caller, propertyId uuid.UUID) (repository.Scope, error) {
	property, err := readRepo[Property]().GetById(ctx, propertyId)
	if err != nil {
		return nil, err
	}
	if property.OwnerId == c.Id {
		return func(db *gorm.DB) *gorm.DB { return db }, nil
	}
	count, err := readRepo[Tenancy]().Count(ctx, whereEq("property_id", propertyId), whereEq("tenant_id", c.Id))
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, utils.ForbiddenError("you do not have access to this property")
	}
	return func(db *gorm.DB) *gorm.DB {
		own := db.Session(&gorm.Session{NewDB: true}).Model(&Tenancy{}).Select("id").Where("property_id = ? AND tenant_id = ?", propertyId, c.Id)
		return db.Where("tenancy_id IN (?)", own)
	}, nil
}

func (f UtilityReadingFilter) scope(db *gorm.DB) *gorm.DB {
	if f.IsCharged != nil {
		db = db.Where("is_charged = ?", *f.IsCharged)
	}
	if f.FromDate != nil {
		db = db.Where("reading_date >= ?", f.FromDate.UTC())
	}
	if f.ToDate != nil {
		db = db.Where("reading_date <= ?", f.ToDate.UTC())
	}
	return db
}
