package repository

import (
	"context"
	"errors"

	"github.com/akin525/bills-ledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrOrgNotFound       = errors.New("组织不存在")
	ErrOrgMemberNotFound = errors.New("不是该组织的成员")
	ErrOrgMemberExists   = errors.New("用户已是组织成员")
)

type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create 创建组织并把创建者写入为 ADMIN 成员（同一事务）
func (r *OrganizationRepository) Create(ctx context.Context, org *model.Organization) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		member := model.OrganizationMember{
			OrganizationID: org.ID,
			UserID:         org.CreatorID,
			Role:           model.OrgRoleAdmin,
		}
		return tx.Create(&member).Error
	})
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id int64) (*model.Organization, error) {
	var org model.Organization
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Members").
		Preload("Members.User").
		First(&org, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *OrganizationRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Organization, error) {
	var orgs []*model.Organization
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Members").
		Preload("Members.User").
		Where("id IN (?)",
			r.db.Model(&model.OrganizationMember{}).Select("organization_id").Where("user_id = ?", userID),
		).
		Find(&orgs).Error
	return orgs, err
}

func (r *OrganizationRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Organization{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *OrganizationRepository) Delete(ctx context.Context, id int64) error {
	// 成员随组织一并删除
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ?", id).Delete(&model.OrganizationMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Organization{}, id).Error
	})
}

// ============================================================
// 成员
// ============================================================

func (r *OrganizationRepository) GetMember(ctx context.Context, orgID, userID int64) (*model.OrganizationMember, error) {
	var m model.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrgMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *OrganizationRepository) AddMember(ctx context.Context, orgID, userID int64, role string) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrOrgMemberExists
	}
	m := model.OrganizationMember{OrganizationID: orgID, UserID: userID, Role: role}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *OrganizationRepository) RemoveMember(ctx context.Context, orgID, userID int64) error {
	return r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Delete(&model.OrganizationMember{}).Error
}

func (r *OrganizationRepository) UpdateMemberRole(ctx context.Context, orgID, userID int64, role string) error {
	result := r.db.WithContext(ctx).
		Model(&model.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrgMemberNotFound
	}
	return nil
}
