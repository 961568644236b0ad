package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"gorm.io/gorm"
)

type AccountRole string

const (
	AccountRoleAdmin AccountRole = "admin"
	AccountRoleOwner AccountRole = "owner"
	AccountRoleUser  AccountRole = "user"
)

func (r AccountRole) IsValid() bool {
	return r == AccountRoleAdmin || r == AccountRoleOwner || r == AccountRoleUser
}

type Account struct {
	BaseModel
	Email           string      `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash    string      `gorm:"size:255;not null" json:"-"`
	Role            AccountRole `gorm:"size:16;index;not null" json:"role"`
	FullName        string      `gorm:"size:255;not null" json:"full_name"`
	PhoneNumber     string      `gorm:"size:32" json:"phone_number"`
	CccdNumber      string      `gorm:"size:32" json:"cccd_number"`
	IsOwnerApproved bool        `gorm:"not null;default:false" json:"is_owner_approved"`
}

type NewAccount struct {
	Email       string      `json:"email" binding:"required,email"`
	Password    string      `json:"password" binding:"required,min=6"`
	FullName    string      `json:"full_name" binding:"required"`
	PhoneNumber string      `json:"phone_number"`
	CccdNumber  string      `json:"cccd_number"`
	Role        AccountRole `json:"role" binding:"required"`
}

// AccountUpdate changes the caller's own profile. The password changes only
// when both password fields are set.
type AccountUpdate struct {
	FullName        *string `json:"full_name"`
	PhoneNumber     *string `json:"phone_number"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password"`
}

// AccountFilter defaults to live accounts. IsDeleted=true lists deleted ones.
type AccountFilter struct {
	Search          string
	Role            *AccountRole
	IsDeleted       *bool
	IsOwnerApproved *bool
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

func (f AccountFilter) scope(db *gorm.DB) *gorm.DB {
	if f.IsDeleted != nil && *f.IsDeleted {
		db = db.Unscoped().Where("is_deleted = ?", true)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		db = db.Where("(full_name LIKE ? OR email LIKE ? OR phone_number LIKE ? OR cccd_number LIKE ?)", like, like, like, like)
	}
	if f.Role != nil {
		db = db.Where("role = ?", *f.Role)
	}
	if f.IsOwnerApproved != nil {
		db = db.Where("is_owner_approved = ?", *f.IsOwnerApproved)
	}
	if f.CreatedFrom != nil {
		db = db.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		db = db.Where("created_at <= ?", *f.CreatedTo)
	}
	return db
}

type LoginInfo struct {
	Token   string   `json:"token"`
	Account *Account `json:"account"`
}

func (input *NewAccount) validate() error {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if !utils.IsValidEmail(input.Email) {
		return utils.BadRequestError("invalid email")
	}
	if len(input.Password) < 6 {
		return utils.BadRequestError("password must be at least 6 characters")
	}
	if strings.TrimSpace(input.FullName) == "" {
		return utils.BadRequestError("full name is required")
	}
	if input.Role != AccountRoleOwner && input.Role != AccountRoleUser {
		return utils.BadRequestError("role must be owner or user")
	}
	if phone := strings.TrimSpace(input.PhoneNumber); phone != "" {
		formatted, err := utils.FormatPhoneNumber(phone, utils.CountryCode())
		if err != nil {
			return utils.BadRequestError("invalid phone number")
		}
		input.PhoneNumber = formatted
	}
	return nil
}

// RegisterAccount signs up an owner or a tenant. Owners start unapproved.
func RegisterAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	account := Account{
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		FullName:     strings.TrimSpace(input.FullName),
		PhoneNumber:  input.PhoneNumber,
		CccdNumber:   strings.TrimSpace(input.CccdNumber),
	}
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		return insertAccount(ctx, uow, &account)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateAdminAccount is used by the seed command. Returns Conflict if the email exists.
func CreateAdminAccount(ctx context.Context, email, password, fullName string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.IsValidEmail(email) {
		return nil, utils.BadRequestError("invalid email")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	account := Account{
		Email:        email,
		PasswordHash: hash,
		Role:         AccountRoleAdmin,
		FullName:     fullName,
	}
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		return insertAccount(ctx, uow, &account)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func insertAccount(ctx context.Context, uow *repository.UnitOfWork, account *Account) error {
	accounts := repository.For[Account](uow)
	count, err := accounts.Count(ctx, whereEq("email", account.Email))
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.ConflictError("email %s is already registered", account.Email)
	}
	return accounts.Insert(ctx, account)
}

func Login(ctx context.Context, email, password string) (*LoginInfo, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	account, err := readRepo[Account]().First(ctx, whereEq("email", email))
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			return nil, utils.BadRequestError("invalid email or password")
		}
		return nil, err
	}
	if err := utils.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, utils.BadRequestError("invalid email or password")
	}
	token, err := utils.JwtGenerate(account.ID, string(account.Role))
	if err != nil {
		return nil, utils.InternalError("failed to issue token", err)
	}
	if err := utils.StoreRedis(account, account.ID); err != nil {
		config.GetLogger().WithField("account_id", account.ID).Warn("failed to cache account: ", err)
	}
	return &LoginInfo{Token: token, Account: account}, nil
}

// ApproveOwner lets an admin approve an owner so they can list properties.
func ApproveOwner(ctx context.Context, accountId uuid.UUID) (*Account, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !c.isAdmin() {
		return nil, utils.ForbiddenError("only admins can approve owners")
	}

	var account *Account
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		accounts := repository.For[Account](uow)
		account, err = accounts.GetById(ctx, accountId)
		if err != nil {
			return err
		}
		if account.Role != AccountRoleOwner {
			return utils.BadRequestError("account is not an owner")
		}
		if account.IsOwnerApproved {
			return utils.ConflictError("owner is already approved")
		}
		account.IsOwnerApproved = true
		account.touch(c.Id)
		return accounts.Update(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisItem[Account](accountId)
	return account, nil
}

// GetAccount reads through the redis cache.
func GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	cached, err := utils.RetrieveRedis[Account](id)
	if err == nil && cached != nil {
		return cached, nil
	}
	account, err := readRepo[Account]().GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis(account, id); err != nil {
		config.GetLogger().WithField("account_id", id).Warn("failed to cache account: ", err)
	}
	return account, nil
}

// ViewAccount returns an account to its holder or to an admin.
func ViewAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if id != c.Id && !c.isAdmin() {
		return nil, utils.ForbiddenError("you do not have access to this account")
	}
	return GetAccount(ctx, id)
}

func requireAdmin(ctx context.Context, action string) (caller, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return caller{}, err
	}
	if !c.isAdmin() {
		return caller{}, utils.ForbiddenError("only admins can %s", action)
	}
	return c, nil
}

func GetAccounts(ctx context.Context, filter AccountFilter, page repository.Pagination) (*repository.Page[Account], error) {
	if _, err := requireAdmin(ctx, "list accounts"); err != nil {
		return nil, err
	}
	if filter.Role != nil && !filter.Role.IsValid() {
		return nil, utils.BadRequestError("invalid role %q", *filter.Role)
	}
	return readRepo[Account]().Page(ctx, page, filter.scope, orderByNewest)
}

// UpdateAccount edits the caller's own profile. The CCCD number is fixed at
// registration.
func UpdateAccount(ctx context.Context, id uuid.UUID, input *AccountUpdate) (*Account, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if id != c.Id {
		return nil, utils.ForbiddenError("you can only update your own account")
	}

	var account *Account
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		accounts := repository.For[Account](uow)
		account, err = accounts.GetById(ctx, id)
		if err != nil {
			return err
		}
		if input.FullName != nil {
			name := strings.TrimSpace(*input.FullName)
			if name == "" {
				return utils.BadRequestError("full name is required")
			}
			account.FullName = name
		}
		if input.PhoneNumber != nil {
			phone := strings.TrimSpace(*input.PhoneNumber)
			if phone != "" {
				phone, err = utils.FormatPhoneNumber(phone, utils.CountryCode())
				if err != nil {
					return utils.BadRequestError("invalid phone number")
				}
			}
			account.PhoneNumber = phone
		}
		if input.CurrentPassword != "" && input.NewPassword != "" {
			if err := utils.ComparePassword(account.PasswordHash, input.CurrentPassword); err != nil {
				return utils.BadRequestError("current password is incorrect")
			}
			if len(input.NewPassword) < 6 {
				return utils.BadRequestError("password must be at least 6 characters")
			}
			hash, err := utils.HashPassword(input.NewPassword)
			if err != nil {
				return err
			}
			account.PasswordHash = hash
		}
		account.touch(c.Id)
		return accounts.Update(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisItem[Account](id)
	return account, nil
}

func DeleteAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	c, err := requireAdmin(ctx, "delete accounts")
	if err != nil {
		return nil, err
	}
	if id == c.Id {
		return nil, utils.BadRequestError("you cannot delete your own account")
	}

	var account *Account
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		accounts := repository.For[Account](uow)
		account, err = accounts.GetById(ctx, id)
		if err != nil {
			return err
		}
		return accounts.SoftDelete(ctx, account, c.Id)
	})
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisItem[Account](id)
	return account, nil
}

func RestoreAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	c, err := requireAdmin(ctx, "restore accounts")
	if err != nil {
		return nil, err
	}

	var account *Account
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		account, err = repository.For[Account](uow).Restore(ctx, id, c.Id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ChangeAccountRole moves an account to role. A new owner must be approved
// again before listing properties.
func ChangeAccountRole(ctx context.Context, id uuid.UUID, role AccountRole) (*Account, error) {
	c, err := requireAdmin(ctx, "change account roles")
	if err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, utils.BadRequestError("invalid role %q", role)
	}
	if id == c.Id {
		return nil, utils.BadRequestError("you cannot change your own role")
	}

	var account *Account
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		accounts := repository.For[Account](uow)
		account, err = accounts.GetById(ctx, id)
		if err != nil {
			return err
		}
		if account.Role == role {
			return nil
		}
		account.Role = role
		if role == AccountRoleOwner {
			account.IsOwnerApproved = false
		}
		account.touch(c.Id)
		return accounts.Update(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedisItem[Account](id)
	return account, nil
}
