package models

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TenancyStatus string

const (
	TenancyStatusPendingConfirmation TenancyStatus = "pending_confirmation"
	TenancyStatusActive              TenancyStatus = "active"
	TenancyStatusExpired             TenancyStatus = "expired"
	TenancyStatusCancelled           TenancyStatus = "cancelled"
)

func (s TenancyStatus) IsValid() bool {
	switch s {
	case TenancyStatusPendingConfirmation, TenancyStatusActive, TenancyStatusExpired, TenancyStatusCancelled:
		return true
	}
	return false
}

// expired and cancelled are terminal.
var tenancyTransitions = transitionTable[TenancyStatus]{
	TenancyStatusPendingConfirmation: {TenancyStatusActive, TenancyStatusCancelled},
	TenancyStatusActive:              {TenancyStatusExpired, TenancyStatusCancelled},
}

type Tenancy struct {
	BaseModel
	PropertyId        uuid.UUID       `gorm:"type:char(36);index;not null" json:"property_id"`
	TenantId          uuid.UUID       `gorm:"type:char(36);index;not null" json:"tenant_id"`
	OwnerId           uuid.UUID       `gorm:"type:char(36);index;not null" json:"owner_id"`
	StartDate         time.Time       `gorm:"not null" json:"start_date"`
	EndDate           time.Time       `gorm:"index;not null" json:"end_date"`
	ContractUrl       string          `gorm:"size:1000" json:"contract_url"`
	Status            TenancyStatus   `gorm:"size:32;index;not null" json:"status"`
	IsTenantConfirmed bool            `gorm:"not null;default:false" json:"is_tenant_confirmed"`
	ElectricUnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"electric_unit_price"`
	WaterUnitPrice    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"water_unit_price"`
	ElectricOldIndex  int             `gorm:"not null" json:"electric_old_index"`
	WaterOldIndex     int             `gorm:"not null" json:"water_old_index"`
}

type NewTenancy struct {
	PropertyId        uuid.UUID       `json:"property_id" binding:"required"`
	TenantId          uuid.UUID       `json:"tenant_id" binding:"required"`
	StartDate         time.Time       `json:"start_date" binding:"required"`
	EndDate           time.Time       `json:"end_date" binding:"required"`
	ContractUrl       string          `json:"contract_url"`
	ElectricUnitPrice decimal.Decimal `json:"electric_unit_price"`
	WaterUnitPrice    decimal.Decimal `json:"water_unit_price"`
	ElectricOldIndex  int             `json:"electric_old_index"`
	WaterOldIndex     int             `json:"water_old_index"`
}

// TenancyUpdate carries the fields an owner may change before the lease starts.
type TenancyUpdate struct {
	StartDate         *time.Time       `json:"start_date"`
	EndDate           *time.Time       `json:"end_date"`
	ContractUrl       *string          `json:"contract_url"`
	ElectricUnitPrice *decimal.Decimal `json:"electric_unit_price"`
	WaterUnitPrice    *decimal.Decimal `json:"water_unit_price"`
	ElectricOldIndex  *int             `json:"electric_old_index"`
	WaterOldIndex     *int             `json:"water_old_index"`
}

type TenancyFilter struct {
	PropertyId        *uuid.UUID
	TenantId          *uuid.UUID
	OwnerId           *uuid.UUID
	Status            *TenancyStatus
	IsTenantConfirmed *bool
	StartDateFrom     *time.Time
	StartDateTo       *time.Time
}

type TenancyResponse struct {
	Tenancy
	LatestElectricIndex *int       `json:"latest_electric_index"`
	LatestWaterIndex    *int       `json:"latest_water_index"`
	LatestReadingDate   *time.Time `json:"latest_reading_date"`
}

func (t *Tenancy) isParty(userId uuid.UUID) bool {
	return t.OwnerId == userId || t.TenantId == userId
}

// editable is false once the lease has started. Only the status machine moves it after that.
func (t *Tenancy) editable() bool {
	return t.Status != TenancyStatusActive && t.Status != TenancyStatusExpired
}

func validateUnitPrices(electric, water decimal.Decimal) error {
	if electric.IsNegative() || water.IsNegative() {
		return utils.BadRequestError("unit prices must not be negative")
	}
	return nil
}

func validateDateOrder(start, end time.Time) error {
	if !end.After(start) {
		return utils.BadRequestError("end date must be after start date")
	}
	return nil
}

func (input *NewTenancy) validate() error {
	if input.PropertyId == uuid.Nil {
		return utils.BadRequestError("property id is required")
	}
	if input.TenantId == uuid.Nil {
		return utils.BadRequestError("tenant id is required")
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return utils.BadRequestError("start date and end date are required")
	}
	if input.ElectricOldIndex < 0 || input.WaterOldIndex < 0 {
		return utils.BadRequestError("baseline indices must not be negative")
	}
	return validateUnitPrices(input.ElectricUnitPrice, input.WaterUnitPrice)
}

func CreateTenancy(ctx context.Context, input *NewTenancy) (*TenancyResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var tenancy Tenancy
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		owner, err := repository.For[Account](uow).GetById(ctx, c.Id)
		if err != nil {
			return err
		}
		if owner.Role != AccountRoleOwner {
			return utils.ForbiddenError("only owners can create tenancies")
		}

		property, err := repository.For[Property](uow).GetById(ctx, input.PropertyId)
		if err != nil {
			return err
		}
		if property.OwnerId != owner.ID {
			return utils.ForbiddenError("you do not own this property")
		}
		if property.Status == PropertyStatusOccupied {
			return utils.ConflictError("property is already occupied")
		}

		tenant, err := repository.For[Account](uow).GetById(ctx, input.TenantId)
		if err != nil {
			if utils.IsKind(err, utils.KindNotFound) {
				return utils.NotFoundError("tenant not found")
			}
			return err
		}
		if tenant.Role != AccountRoleUser {
			return utils.BadRequestError("tenant account must have the user role")
		}

		active, err := countActiveTenancies(ctx, uow, property.ID, uuid.Nil)
		if err != nil {
			return err
		}
		if active > 0 {
			return utils.ConflictError("property already has an active tenancy")
		}

		start, end := input.StartDate.UTC(), input.EndDate.UTC()
		if err := validateDateOrder(start, end); err != nil {
			return err
		}

		tenancy = Tenancy{
			PropertyId:        property.ID,
			TenantId:          tenant.ID,
			OwnerId:           owner.ID,
			StartDate:         start,
			EndDate:           end,
			ContractUrl:       strings.TrimSpace(input.ContractUrl),
			Status:            TenancyStatusPendingConfirmation,
			IsTenantConfirmed: false,
			ElectricUnitPrice: input.ElectricUnitPrice,
			WaterUnitPrice:    input.WaterUnitPrice,
			ElectricOldIndex:  input.ElectricOldIndex,
			WaterOldIndex:     input.WaterOldIndex,
		}
		tenancy.CreatedBy = c.Id
		return repository.For[Tenancy](uow).Insert(ctx, &tenancy)
	})
	if err != nil {
		return nil, err
	}
	return &TenancyResponse{Tenancy: tenancy}, nil
}

func UpdateTenancy(ctx context.Context, id uuid.UUID, input *TenancyUpdate) (*TenancyResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var tenancy *Tenancy
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		tenancies := repository.For[Tenancy](uow)
		tenancy, err = tenancies.GetById(ctx, id)
		if err != nil {
			return err
		}
		if tenancy.OwnerId != c.Id {
			return utils.ForbiddenError("only the owner can update this tenancy")
		}
		if !tenancy.editable() {
			return utils.ConflictError("tenancy is %s and can no longer be edited", tenancy.Status)
		}

		start, end := tenancy.StartDate, tenancy.EndDate
		if input.StartDate != nil {
			start = input.StartDate.UTC()
		}
		if input.EndDate != nil {
			end = input.EndDate.UTC()
		}
		if err := validateDateOrder(start, end); err != nil {
			return err
		}
		tenancy.StartDate, tenancy.EndDate = start, end

		if input.ContractUrl != nil {
			tenancy.ContractUrl = strings.TrimSpace(*input.ContractUrl)
		}
		if input.ElectricUnitPrice != nil {
			tenancy.ElectricUnitPrice = *input.ElectricUnitPrice
		}
		if input.WaterUnitPrice != nil {
			tenancy.WaterUnitPrice = *input.WaterUnitPrice
		}
		if err := validateUnitPrices(tenancy.ElectricUnitPrice, tenancy.WaterUnitPrice); err != nil {
			return err
		}

		if input.ElectricOldIndex != nil || input.WaterOldIndex != nil {
			readings, err := repository.For[UtilityReading](uow).Count(ctx, whereEq("tenancy_id", tenancy.ID))
			if err != nil {
				return err
			}
			if readings > 0 {
				return utils.ConflictError("baseline indices cannot change after readings were recorded")
			}
			if input.ElectricOldIndex != nil {
				tenancy.ElectricOldIndex = *input.ElectricOldIndex
			}
			if input.WaterOldIndex != nil {
				tenancy.WaterOldIndex = *input.WaterOldIndex
			}
			if tenancy.ElectricOldIndex < 0 || tenancy.WaterOldIndex < 0 {
				return utils.BadRequestError("baseline indices must not be negative")
			}
		}

		tenancy.touch(c.Id)
		return tenancies.Update(ctx, tenancy)
	})
	if err != nil {
		return nil, err
	}
	return tenancyResponse(ctx, readRepo[UtilityReading](), tenancy)
}

// UpdateTenancyStatus applies an owner-requested transition.
func UpdateTenancyStatus(ctx context.Context, id uuid.UUID, status TenancyStatus) (*TenancyResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, utils.BadRequestError("invalid tenancy status %q", status)
	}

	var tenancy *Tenancy
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		tenancies := repository.For[Tenancy](uow)
		tenancy, err = tenancies.GetById(ctx, id)
		if err != nil {
			return err
		}
		if tenancy.OwnerId != c.Id {
			return utils.ForbiddenError("only the owner can change the tenancy status")
		}
		if err := tenancyTransitions.validate("tenancy", tenancy.Status, status); err != nil {
			return err
		}
		if status == TenancyStatusActive {
			if !tenancy.IsTenantConfirmed {
				return utils.BadRequestError("tenant has not confirmed this tenancy")
			}
			if err := ensureNoOtherActive(ctx, uow, tenancy); err != nil {
				return err
			}
		}
		return moveTenancy(ctx, uow, tenancy, status, c.Id)
	})
	if err != nil {
		return nil, err
	}
	publishTenancyEvent(ctx, tenancy, c.Id)
	return tenancyResponse(ctx, readRepo[UtilityReading](), tenancy)
}

// ConfirmTenancy is the tenant accepting a pending lease.
func ConfirmTenancy(ctx context.Context, id uuid.UUID) (*TenancyResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var tenancy *Tenancy
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		tenancies := repository.For[Tenancy](uow)
		tenancy, err = tenancies.GetById(ctx, id)
		if err != nil {
			return err
		}
		if tenancy.TenantId != c.Id {
			return utils.ForbiddenError("only the tenant can confirm this tenancy")
		}
		if tenancy.IsTenantConfirmed {
			return utils.ConflictError("tenancy is already confirmed")
		}
		if tenancy.Status != TenancyStatusPendingConfirmation {
			return utils.BadRequestError("tenancy is %s, not pending confirmation", tenancy.Status)
		}
		if err := ensureNoOtherActive(ctx, uow, tenancy); err != nil {
			return err
		}
		tenancy.IsTenantConfirmed = true
		return moveTenancy(ctx, uow, tenancy, TenancyStatusActive, c.Id)
	})
	if err != nil {
		return nil, err
	}
	publishTenancyEvent(ctx, tenancy, c.Id)
	return tenancyResponse(ctx, readRepo[UtilityReading](), tenancy)
}

// CancelTenancy may be called by either party.
func CancelTenancy(ctx context.Context, id uuid.UUID) (*TenancyResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var tenancy *Tenancy
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		tenancies := repository.For[Tenancy](uow)
		tenancy, err = tenancies.GetById(ctx, id)
		if err != nil {
			return err
		}
		if !tenancy.isParty(c.Id) {
			return utils.ForbiddenError("only the owner or tenant can cancel this tenancy")
		}
		if tenancy.Status == TenancyStatusExpired || tenancy.Status == TenancyStatusCancelled {
			return utils.ConflictError("tenancy is already %s", tenancy.Status)
		}
		return moveTenancy(ctx, uow, tenancy, TenancyStatusCancelled, c.Id)
	})
	if err != nil {
		return nil, err
	}
	publishTenancyEvent(ctx, tenancy, c.Id)
	return tenancyResponse(ctx, readRepo[UtilityReading](), tenancy)
}

func DeleteTenancy(ctx context.Context, id uuid.UUID) (*Tenancy, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var tenancy *Tenancy
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		tenancies := repository.For[Tenancy](uow)
		tenancy, err = tenancies.GetById(ctx, id)
		if err != nil {
			return err
		}
		if tenancy.OwnerId != c.Id {
			return utils.ForbiddenError("only the owner can delete this tenancy")
		}
		if tenancy.Status == TenancyStatusActive {
			return utils.ConflictError("an active tenancy cannot be deleted")
		}
		return tenancies.SoftDelete(ctx, tenancy, c.Id)
	})
	if err != nil {
		return nil, err
	}
	return tenancy, nil
}

func GetTenancy(ctx context.Context, id uuid.UUID) (*TenancyResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	tenancy, err := readRepo[Tenancy]().GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tenancy.isParty(c.Id) && !c.isAdmin() {
		return nil, utils.ForbiddenError("you do not have access to this tenancy")
	}
	return tenancyResponse(ctx, readRepo[UtilityReading](), tenancy)
}

// GetTenancies lists tenancies. Non-admins only see leases they are a party to.
func GetTenancies(ctx context.Context, filter TenancyFilter, page repository.Pagination) (*repository.Page[TenancyResponse], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	scope := func(db *gorm.DB) *gorm.DB {
		if !c.isAdmin() {
			db = db.Where("(owner_id = ? OR tenant_id = ?)", c.Id, c.Id)
		}
		if filter.PropertyId != nil {
			db = db.Where("property_id = ?", *filter.PropertyId)
		}
		if filter.TenantId != nil {
			db = db.Where("tenant_id = ?", *filter.TenantId)
		}
		if filter.OwnerId != nil {
			db = db.Where("owner_id = ?", *filter.OwnerId)
		}
		if filter.Status != nil {
			db = db.Where("status = ?", *filter.Status)
		}
		if filter.IsTenantConfirmed != nil {
			db = db.Where("is_tenant_confirmed = ?", *filter.IsTenantConfirmed)
		}
		if filter.StartDateFrom != nil {
			db = db.Where("start_date >= ?", filter.StartDateFrom.UTC())
		}
		if filter.StartDateTo != nil {
			db = db.Where("start_date <= ?", filter.StartDateTo.UTC())
		}
		return db
	}
	result, err := readRepo[Tenancy]().Page(ctx, page, scope, orderByNewest)
	if err != nil {
		return nil, err
	}
	readings := readRepo[UtilityReading]()
	out := &repository.Page[TenancyResponse]{Items: make([]TenancyResponse, 0, len(result.Items)), Page: result.Page, PageSize: result.PageSize, Total: result.Total}
	for i := range result.Items {
		resp, err := tenancyResponse(ctx, readings, &result.Items[i])
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *resp)
	}
	return out, nil
}

func GetActiveTenancyByProperty(ctx context.Context, propertyId uuid.UUID) (*TenancyResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	property, err := readRepo[Property]().GetById(ctx, propertyId)
	if err != nil {
		return nil, err
	}
	tenancy, err := readRepo[Tenancy]().First(ctx,
		whereEq("property_id", propertyId),
		whereEq("status", TenancyStatusActive),
	)
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			return nil, utils.NotFoundError("property has no active tenancy")
		}
		return nil, err
	}
	if property.OwnerId != c.Id && tenancy.TenantId != c.Id && !c.isAdmin() {
		return nil, utils.ForbiddenError("you do not have access to this tenancy")
	}
	return tenancyResponse(ctx, readRepo[UtilityReading](), tenancy)
}

// UpdateExpiredTenancies expires every active lease whose end date has passed
// and frees its property. Nothing is written when no lease matches. A lease
// that leaves active between the read and the write is not expired.
func UpdateExpiredTenancies(ctx context.Context) (int, error) {
	now := nowUTC()
	var expired []Tenancy
	err := transact(ctx, func(uow *repository.UnitOfWork) error {
		tenancies := repository.For[Tenancy](uow)
		stillActive := whereEq("status", TenancyStatusActive)
		due, err := tenancies.Find(ctx, stillActive, func(db *gorm.DB) *gorm.DB {
			return db.Where("end_date < ?", now)
		})
		if err != nil || len(due) == 0 {
			return err
		}
		ids := make([]uuid.UUID, 0, len(due))
		for _, t := range due {
			ids = append(ids, t.ID)
		}

		affected, err := tenancies.BulkUpdate(ctx, ids, map[string]any{
			"status": TenancyStatusExpired,
		}, stillActive)
		if err != nil {
			return err
		}
		if int(affected) == len(due) {
			for i := range due {
				due[i].Status = TenancyStatusExpired
			}
			expired = due
		} else {
			expired, err = tenancies.Find(ctx, whereEq("status", TenancyStatusExpired), func(db *gorm.DB) *gorm.DB {
				return db.Where("id IN ?", ids)
			})
			if err != nil {
				return err
			}
		}

		propertyIds := make(map[uuid.UUID]struct{}, len(expired))
		for _, t := range expired {
			propertyIds[t.PropertyId] = struct{}{}
		}
		for propertyId := range propertyIds {
			if err := syncPropertyOccupancy(ctx, uow, propertyId, uuid.Nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for i := range expired {
		publishTenancyEvent(ctx, &expired[i], uuid.Nil)
	}
	return len(expired), nil
}

// SetTenancyContract uploads the signed contract document.
func SetTenancyContract(ctx context.Context, id uuid.UUID, fileName string, data []byte) (*TenancyResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > utils.MaxUploadSizeBytes {
		return nil, utils.BadRequestError("file size exceeds 5MB limit")
	}
	contentType := utils.DetectContentType(fileName, data)
	if !utils.DocumentMimeTypes[contentType] {
		return nil, utils.BadRequestError("unsupported file type: %s", contentType)
	}

	tenancy, err := readRepo[Tenancy]().GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenancy.OwnerId != c.Id {
		return nil, utils.ForbiddenError("only the owner can upload the contract")
	}
	if !tenancy.editable() {
		return nil, utils.ConflictError("tenancy is %s and can no longer be edited", tenancy.Status)
	}

	url, err := utils.GetObjectStorage().Upload(ctx, utils.NewObjectKey("contracts", id, filepath.Ext(fileName)), data, contentType)
	if err != nil {
		return nil, utils.InternalError("failed to upload contract", err)
	}
	return UpdateTenancy(ctx, id, &TenancyUpdate{ContractUrl: &url})
}

func moveTenancy(ctx context.Context, uow *repository.UnitOfWork, tenancy *Tenancy, status TenancyStatus, actor uuid.UUID) error {
	tenancy.Status = status
	tenancy.touch(actor)
	if err := repository.For[Tenancy](uow).Update(ctx, tenancy); err != nil {
		return err
	}
	return syncPropertyOccupancy(ctx, uow, tenancy.PropertyId, actor)
}

// syncPropertyOccupancy marks a property occupied iff an active tenancy references it.
func syncPropertyOccupancy(ctx context.Context, uow *repository.UnitOfWork, propertyId uuid.UUID, actor uuid.UUID) error {
	active, err := countActiveTenancies(ctx, uow, propertyId, uuid.Nil)
	if err != nil {
		return err
	}
	status := PropertyStatusAvailable
	if active > 0 {
		status = PropertyStatusOccupied
	}
	return setPropertyStatus(ctx, uow, propertyId, status, actor)
}

func countActiveTenancies(ctx context.Context, uow *repository.UnitOfWork, propertyId uuid.UUID, except uuid.UUID) (int64, error) {
	return repository.For[Tenancy](uow).Count(ctx, func(db *gorm.DB) *gorm.DB {
		db = db.Where("property_id = ? AND status = ?", propertyId, TenancyStatusActive)
		if except != uuid.Nil {
			db = db.Where("id <> ?", except)
		}
		return db
	})
}

func ensureNoOtherActive(ctx context.Context, uow *repository.UnitOfWork, tenancy *Tenancy) error {
	active, err := countActiveTenancies(ctx, uow, tenancy.PropertyId, tenancy.ID)
	if err != nil {
		return err
	}
	if active > 0 {
		return utils.ConflictError("property already has an active tenancy")
	}
	return nil
}

func tenancyResponse(ctx context.Context, readings repository.Repository[UtilityReading], tenancy *Tenancy) (*TenancyResponse, error) {
	resp := &TenancyResponse{Tenancy: *tenancy}
	latest, err := latestReading(ctx, readings, tenancy.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		resp.LatestElectricIndex = &latest.ElectricNewIndex
		resp.LatestWaterIndex = &latest.WaterNewIndex
		resp.LatestReadingDate = &latest.ReadingDate
	}
	return resp, nil
}
