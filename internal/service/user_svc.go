package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/apperr"
	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/repository"
)

// ==================== UserService 用户服务 ====================

// UserService 用户服务
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// ==================== 认证相关 ====================

// Register 自助注册, 角色固定为 customer
func (s *UserService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.LoginResponse, error) {
	user, err := s.create(ctx, &model.User{
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
		Role:      model.UserRoleCustomer,
		IsActive:  true,
	}, req.Password)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

// Login 用户登录
func (s *UserService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	// 查找用户
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperr.FromStore(err, "用户")
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	// 检查状态
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	// 更新最后登录时间
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		zap.L().Warn("更新最后登录时间失败", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return resp, nil
}

// RefreshToken 刷新 Token
// refresh token 只能用一次: 与库里保存的摘要比对后立即轮换
func (s *UserService) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error) {
	// 解析 Refresh Token
	claims, err := middleware.ParseToken(req.RefreshToken, middleware.TokenKindRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}

	// 获取用户信息（确保用户仍然有效）
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.FromStore(err, "用户")
	}
	if user == nil || !user.IsActive {
		return nil, ErrUserDisabled
	}

	digest := hashToken(req.RefreshToken)
	if user.RefreshTokenHash == "" || subtle.ConstantTimeCompare([]byte(digest), []byte(user.RefreshTokenHash)) != 1 {
		return nil, ErrInvalidToken
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &dto.RefreshTokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.ExpiresAt,
	}, nil
}

// Logout 作废当前 refresh token
func (s *UserService) Logout(ctx context.Context, userID int64) error {
	return apperr.FromStore(s.userRepo.UpdateRefreshToken(ctx, userID, ""), "用户")
}

// ChangePassword 修改密码, 同时作废已签发的 refresh token
func (s *UserService) ChangePassword(ctx context.Context, userID int64, req *dto.ChangePasswordRequest) error {
	user, err := s.mustGet(ctx, userID)
	if err != nil {
		return err
	}

	// 验证旧密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrInvalidOldPassword
	}

	hashed, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hashed); err != nil {
		return apperr.FromStore(err, "用户")
	}
	return apperr.FromStore(s.userRepo.UpdateRefreshToken(ctx, userID, ""), "用户")
}

// GetProfile 获取当前用户信息
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*dto.UserInfo, error) {
	user, err := s.mustGet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserInfo(user), nil
}

// ==================== 用户管理（管理员） ====================

// CreateUser 创建用户
func (s *UserService) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserInfo, error) {
	user, err := s.create(ctx, &model.User{
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      model.UserRole(req.Role),
		IsActive:  true,
	}, req.Password)
	if err != nil {
		return nil, err
	}
	return toUserInfo(user), nil
}

// EnsureAdmin 启动时创建初始管理员, 用户名已存在时不做任何事
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}
	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return false, apperr.FromStore(err, "用户")
	}
	if exists {
		return false, nil
	}
	_, err = s.create(ctx, &model.User{
		Username: username,
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Role:     model.UserRoleAdmin,
		IsActive: true,
	}, password)
	return err == nil, err
}

// UpdateUser 更新用户
func (s *UserService) UpdateUser(ctx context.Context, userID int64, req *dto.UpdateUserRequest) (*dto.UserInfo, error) {
	user, err := s.mustGet(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}

	// 检查邮箱是否被其他用户使用
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		existing, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return nil, apperr.FromStore(err, "用户")
		}
		if existing != nil && existing.ID != userID {
			return nil, ErrEmailExists
		}
		fields["email"] = email
	}
	if req.FirstName != nil {
		fields["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		fields["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Role != "" {
		role := model.UserRole(req.Role)
		if !role.Valid() {
			return nil, apperr.Validation("未知角色: %s", req.Role)
		}
		fields["role"] = role
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
		if !*req.IsActive {
			fields["refresh_token_hash"] = ""
		}
	}

	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, userID, fields); err != nil {
			return nil, apperr.FromStore(err, "用户")
		}
	}
	return s.GetProfile(ctx, userID)
}

// ResetPassword 重置密码（管理员）
func (s *UserService) ResetPassword(ctx context.Context, userID int64, newPassword string) error {
	if _, err := s.mustGet(ctx, userID); err != nil {
		return err
	}
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hashed); err != nil {
		return apperr.FromStore(err, "用户")
	}
	return apperr.FromStore(s.userRepo.UpdateRefreshToken(ctx, userID, ""), "用户")
}

// DeleteUser 删除用户
func (s *UserService) DeleteUser(ctx context.Context, userID int64) error {
	user, err := s.mustGet(ctx, userID)
	if err != nil {
		return err
	}

	// 不允许删除 admin 用户
	if user.Role == model.UserRoleAdmin {
		return ErrCannotDeleteAdmin
	}

	return apperr.FromStore(s.userRepo.Delete(ctx, userID), "用户")
}

// ListUsers 用户列表
func (s *UserService) ListUsers(ctx context.Context, req *dto.UserListRequest) (*dto.UserListResponse, error) {
	page, size := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	users, total, err := s.userRepo.List(ctx, repository.UserFilter{
		Keyword:  req.Keyword,
		Role:     req.Role,
		IsActive: req.IsActive,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return nil, apperr.FromStore(err, "用户")
	}

	list := make([]*dto.UserInfo, len(users))
	for i := range users {
		list[i] = toUserInfo(&users[i])
	}
	return dto.NewPageResult(list, total, page, size), nil
}

// GetUserByID 获取用户详情
func (s *UserService) GetUserByID(ctx context.Context, userID int64) (*dto.UserInfo, error) {
	return s.GetProfile(ctx, userID)
}

// ==================== 辅助方法 ====================

func (s *UserService) create(ctx context.Context, user *model.User, password string) (*model.User, error) {
	if !user.Role.Valid() {
		return nil, apperr.Validation("未知角色: %s", user.Role)
	}

	// 检查用户名是否存在
	exists, err := s.userRepo.ExistsByUsername(ctx, user.Username)
	if err != nil {
		return nil, apperr.FromStore(err, "用户")
	}
	if exists {
		return nil, ErrUsernameExists
	}

	// 检查邮箱是否存在
	exists, err = s.userRepo.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return nil, apperr.FromStore(err, "用户")
	}
	if exists {
		return nil, ErrEmailExists
	}

	if user.PasswordHash, err = hashPassword(password); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperr.FromStore(err, "用户")
	}
	return user, nil
}

func (s *UserService) mustGet(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore(err, "用户")
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// issueTokens 签发新的 token 对并保存 refresh token 摘要
func (s *UserService) issueTokens(ctx context.Context, user *model.User) (*dto.LoginResponse, error) {
	accessToken, refreshToken, err := middleware.IssueTokenPair(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateRefreshToken(ctx, user.ID, hashToken(refreshToken)); err != nil {
		return nil, apperr.FromStore(err, "用户")
	}

	cfg := middleware.GetJWTConfig()
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(cfg.AccessTokenTTL),
		User:         toUserInfo(user),
	}, nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Validation("密码不合法: %v", err)
	}
	return string(hashed), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// toUserInfo 转换为 DTO
func toUserInfo(user *model.User) *dto.UserInfo {
	return &dto.UserInfo{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Phone:       user.Phone,
		Role:        string(user.Role),
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

// ==================== 错误定义 ====================

// 认证失败, 由控制器映射为 401
var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUserDisabled       = errors.New("用户已禁用")
	ErrInvalidToken       = errors.New("Token 无效")
)

var (
	ErrUserNotFound       = apperr.NotFound("用户不存在")
	ErrInvalidOldPassword = apperr.Validation("旧密码错误")
	ErrUsernameExists     = apperr.Conflict("用户名已存在")
	ErrEmailExists        = apperr.Conflict("邮箱已存在")
	ErrCannotDeleteAdmin  = apperr.Permission("不能删除管理员用户")
)
