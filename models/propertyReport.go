package models

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"gorm.io/gorm"
)

type ReportPriority string

const (
	ReportPriorityLow      ReportPriority = "low"
	ReportPriorityMedium   ReportPriority = "medium"
	ReportPriorityHigh     ReportPriority = "high"
	ReportPriorityComplete ReportPriority = "complete"
)

func (p ReportPriority) IsValid() bool {
	switch p {
	case ReportPriorityLow, ReportPriorityMedium, ReportPriorityHigh, ReportPriorityComplete:
		return true
	}
	return false
}

// PropertyReport is a maintenance issue raised by the tenant of a tenancy.
type PropertyReport struct {
	BaseModel
	PropertyId    uuid.UUID      `gorm:"type:char(36);index;not null" json:"property_id"`
	TenancyId     uuid.UUID      `gorm:"type:char(36);index;not null" json:"tenancy_id"`
	OwnerId       uuid.UUID      `gorm:"type:char(36);index;not null" json:"owner_id"`
	RequestedById uuid.UUID      `gorm:"type:char(36);index;not null" json:"requested_by_id"`
	Title         string         `gorm:"size:200;not null" json:"title"`
	Description   string         `gorm:"type:text;not null" json:"description"`
	Priority      ReportPriority `gorm:"size:16;index;not null" json:"priority"`
}

type NewPropertyReport struct {
	PropertyId  uuid.UUID      `json:"property_id" binding:"required"`
	TenancyId   uuid.UUID      `json:"tenancy_id" binding:"required"`
	Title       string         `json:"title" binding:"required"`
	Description string         `json:"description" binding:"required"`
	Priority    ReportPriority `json:"priority"`
}

type PropertyReportUpdate struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *ReportPriority `json:"priority"`
}

type PropertyReportFilter struct {
	Priority *ReportPriority
}

func (f PropertyReportFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Priority != nil {
		db = db.Where("priority = ?", *f.Priority)
	}
	return db
}

func (input *NewPropertyReport) validate() error {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.Title == "" {
		return utils.BadRequestError("title is required")
	}
	if len(input.Title) > 200 {
		return utils.BadRequestError("title must be at most 200 characters")
	}
	if input.Description == "" {
		return utils.BadRequestError("description is required")
	}
	if input.Priority == "" {
		input.Priority = ReportPriorityLow
	}
	return validateRequestedPriority(input.Priority)
}

// tenants may rank an issue but only the owner closes it.
func validateRequestedPriority(p ReportPriority) error {
	if !p.IsValid() {
		return utils.BadRequestError("invalid priority %q", p)
	}
	if p == ReportPriorityComplete {
		return utils.BadRequestError("only the owner can mark a report complete")
	}
	return nil
}

func CreatePropertyReport(ctx context.Context, input *NewPropertyReport) (*PropertyReport, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var report PropertyReport
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		tenancy, err := repository.For[Tenancy](uow).GetById(ctx, input.TenancyId)
		if err != nil {
			return err
		}
		if tenancy.TenantId != c.Id {
			return utils.ForbiddenError("only the tenant can report issues for this tenancy")
		}
		if tenancy.PropertyId != input.PropertyId {
			return utils.BadRequestError("property does not match the tenancy")
		}
		property, err := repository.For[Property](uow).GetById(ctx, input.PropertyId)
		if err != nil {
			return err
		}

		report = PropertyReport{
			PropertyId:    property.ID,
			TenancyId:     tenancy.ID,
			OwnerId:       property.OwnerId,
			RequestedById: c.Id,
			Title:         input.Title,
			Description:   input.Description,
			Priority:      input.Priority,
		}
		report.CreatedBy = c.Id
		return repository.For[PropertyReport](uow).Insert(ctx, &report)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func UpdatePropertyReport(ctx context.Context, id uuid.UUID, input *PropertyReportUpdate) (*PropertyReport, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var report *PropertyReport
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		reports := repository.For[PropertyReport](uow)
		report, err = reports.GetById(ctx, id)
		if err != nil {
			return err
		}
		if report.RequestedById != c.Id {
			return utils.ForbiddenError("only the requester can update this report")
		}
		if report.Priority == ReportPriorityComplete {
			return utils.ConflictError("report is complete and can no longer be edited")
		}
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return utils.BadRequestError("title is required")
			}
			if len(title) > 200 {
				return utils.BadRequestError("title must be at most 200 characters")
			}
			report.Title = title
		}
		if input.Description != nil {
			description := strings.TrimSpace(*input.Description)
			if description == "" {
				return utils.BadRequestError("description is required")
			}
			report.Description = description
		}
		if input.Priority != nil {
			if err := validateRequestedPriority(*input.Priority); err != nil {
				return err
			}
			report.Priority = *input.Priority
		}
		report.touch(c.Id)
		return reports.Update(ctx, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// UpdatePropertyReportPriority lets the owner triage or close a report.
func UpdatePropertyReportPriority(ctx context.Context, id uuid.UUID, priority ReportPriority) (*PropertyReport, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !priority.IsValid() {
		return nil, utils.BadRequestError("invalid priority %q", priority)
	}

	var report *PropertyReport
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		reports := repository.For[PropertyReport](uow)
		report, err = reports.GetById(ctx, id)
		if err != nil {
			return err
		}
		property, err := repository.For[Property](uow).GetById(ctx, report.PropertyId)
		if err != nil {
			return err
		}
		if property.OwnerId != c.Id {
			return utils.ForbiddenError("only the property owner can change the report priority")
		}
		if report.Priority == ReportPriorityComplete {
			return utils.ConflictError("report is already complete")
		}
		report.Priority = priority
		report.touch(c.Id)
		return reports.Update(ctx, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func DeletePropertyReport(ctx context.Context, id uuid.UUID) (*PropertyReport, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var report *PropertyReport
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		reports := repository.For[PropertyReport](uow)
		report, err = reports.GetById(ctx, id)
		if err != nil {
			return err
		}
		if report.RequestedById != c.Id && report.OwnerId != c.Id {
			return utils.ForbiddenError("only the requester or the owner can delete this report")
		}
		return reports.SoftDelete(ctx, report, c.Id)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func GetPropertyReport(ctx context.Context, id uuid.UUID) (*PropertyReport, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	report, err := readRepo[PropertyReport]().GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.RequestedById != c.Id && report.OwnerId != c.Id && !c.isAdmin() {
		return nil, utils.ForbiddenError("you do not have access to this report")
	}
	return report, nil
}

func GetPropertyReportsByOwner(ctx context.Context, filter PropertyReportFilter, page repository.Pagination) (*repository.Page[PropertyReport], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return readRepo[PropertyReport]().Page(ctx, page, whereEq("owner_id", c.Id), filter.scope, orderByNewest)
}

func GetPropertyReportsByTenant(ctx context.Context, filter PropertyReportFilter, page repository.Pagination) (*repository.Page[PropertyReport], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return readRepo[PropertyReport]().Page(ctx, page, whereEq("requested_by_id", c.Id), filter.scope, orderByNewest)
}

func GetPropertyReportsByProperty(ctx context.Context, propertyId uuid.UUID, filter PropertyReportFilter, page repository.Pagination) (*repository.Page[PropertyReport], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	property, err := readRepo[Property]().GetById(ctx, propertyId)
	if err != nil {
		return nil, err
	}
	if property.OwnerId != c.Id && !c.isAdmin() {
		return nil, utils.ForbiddenError("only the owner can view reports for this property")
	}
	return readRepo[PropertyReport]().Page(ctx, page, whereEq("property_id", propertyId), filter.scope, orderByNewest)
}

func GetPropertyReportsByTenancy(ctx context.Context, tenancyId uuid.UUID, filter PropertyReportFilter, page repository.Pagination) (*repository.Page[PropertyReport], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	tenancy, err := readRepo[Tenancy]().GetById(ctx, tenancyId)
	if err != nil {
		return nil, err
	}
	if !tenancy.isParty(c.Id) && !c.isAdmin() {
		return nil, utils.ForbiddenError("you do not have access to this tenancy")
	}
	return readRepo[PropertyReport]().Page(ctx, page, whereEq("tenancy_id", tenancyId), filter.scope, orderByNewest)
}
