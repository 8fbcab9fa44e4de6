package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/akin525/bills-ledger/internal/model"
	"github.com/akin525/bills-ledger/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrNotOrgAdmin      = errors.New("只有组织管理员可以执行该操作")
	ErrNotOrgCreator    = errors.New("只有组织创建者可以执行该操作")
	ErrCreatorImmutable = errors.New("组织创建者不能被移除或降级")
)

type OrganizationService struct {
	orgRepo  *repository.OrganizationRepository
	userRepo *repository.UserRepository
}

func NewOrganizationService(db *gorm.DB) *OrganizationService {
	return &OrganizationService{
		orgRepo:  repository.NewOrganizationRepository(db),
		userRepo: repository.NewUserRepository(db),
	}
}

type CreateOrganizationRequest struct {
	Name        string `json:"name" binding:"required,max=128"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
}

func (s *OrganizationService) Create(ctx context.Context, creatorID int64, req *CreateOrganizationRequest) (*model.Organization, error) {
	org := &model.Organization{
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
		CreatorID:   creatorID,
	}
	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("创建组织失败: %w", err)
	}
	return s.orgRepo.GetByID(ctx, org.ID)
}

// Get 组织详情，仅成员可见
func (s *OrganizationService) Get(ctx context.Context, orgID, userID int64) (*model.Organization, error) {
	if _, err := s.orgRepo.GetMember(ctx, orgID, userID); err != nil {
		return nil, err
	}
	return s.orgRepo.GetByID(ctx, orgID)
}

func (s *OrganizationService) ListByUser(ctx context.Context, userID int64) ([]*model.Organization, error) {
	return s.orgRepo.ListByUser(ctx, userID)
}

type UpdateOrganizationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Avatar      *string `json:"avatar"`
}

// Update 修改组织资料，仅管理员
func (s *OrganizationService) Update(ctx context.Context, orgID, userID int64, req *UpdateOrganizationRequest) (*model.Organization, error) {
	if err := s.requireAdmin(ctx, orgID, userID); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
	}
	if len(updates) > 0 {
		if err := s.orgRepo.Update(ctx, orgID, updates); err != nil {
			return nil, err
		}
	}
	return s.orgRepo.GetByID(ctx, orgID)
}

// Delete 解散组织，仅创建者
func (s *OrganizationService) Delete(ctx context.Context, orgID, userID int64) error {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return err
	}
	if org.CreatorID != userID {
		return ErrNotOrgCreator
	}
	return s.orgRepo.Delete(ctx, orgID)
}

// AddMember 拉人入组织，仅管理员
func (s *OrganizationService) AddMember(ctx context.Context, orgID, operatorID, newUserID int64, role string) error {
	if err := s.requireAdmin(ctx, orgID, operatorID); err != nil {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, newUserID); err != nil {
		return err
	}
	if role != model.OrgRoleAdmin {
		role = model.OrgRoleMember
	}
	return s.orgRepo.AddMember(ctx, orgID, newUserID, role)
}

// RemoveMember 移除成员：管理员可移除他人，普通成员只能退出自己
// 创建者不可被移除
func (s *OrganizationService) RemoveMember(ctx context.Context, orgID, operatorID, targetID int64) error {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return err
	}
	if targetID == org.CreatorID {
		return ErrCreatorImmutable
	}
	if operatorID != targetID {
		if err := s.requireAdmin(ctx, orgID, operatorID); err != nil {
			return err
		}
	} else {
		if _, err := s.orgRepo.GetMember(ctx, orgID, operatorID); err != nil {
			return err
		}
	}
	return s.orgRepo.RemoveMember(ctx, orgID, targetID)
}

// UpdateMemberRole 调整成员角色，仅管理员，创建者角色不可动
func (s *OrganizationService) UpdateMemberRole(ctx context.Context, orgID, operatorID, targetID int64, role string) error {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return err
	}
	if targetID == org.CreatorID {
		return ErrCreatorImmutable
	}
	if err := s.requireAdmin(ctx, orgID, operatorID); err != nil {
		return err
	}
	if role != model.OrgRoleAdmin && role != model.OrgRoleMember {
		return errors.New("未知的成员角色: " + role)
	}
	return s.orgRepo.UpdateMemberRole(ctx, orgID, targetID, role)
}

func (s *OrganizationService) requireAdmin(ctx context.Context, orgID, userID int64) error {
	member, err := s.orgRepo.GetMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if member.Role != model.OrgRoleAdmin {
		return ErrNotOrgAdmin
	}
	return nil
}
