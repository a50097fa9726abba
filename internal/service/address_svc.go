package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/apperr"
	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/repository"
)

// ==================== AddressService 地址服务 ====================

// AddressService 去重地址与用户地址簿
// 地址记录只增不改; 修改地址簿条目 = 取得另一条地址并重新关联
type AddressService struct {
	repo repository.AddressRepository
}

// NewAddressService 创建地址服务
func NewAddressService(repo repository.AddressRepository) *AddressService {
	return &AddressService{repo: repo}
}

// ==================== 规范化 ====================

// NormalizeAddress 去首尾空白、合并连续空白
func NormalizeAddress(f dto.AddressFields) dto.AddressFields {
	clean := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	return dto.AddressFields{
		AddressLine: clean(f.AddressLine),
		City:        clean(f.City),
		Postcode:    clean(f.Postcode),
		State:       clean(f.State),
		Country:     clean(f.Country),
	}
}

// AddressHash 规范化并忽略大小写后的 sha256
func AddressHash(f dto.AddressFields) string {
	n := NormalizeAddress(f)
	parts := []string{n.AddressLine, n.City, n.Postcode, n.State, n.Country}
	for i := range parts {
		parts[i] = strings.ToLower(parts[i])
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func validateAddress(f dto.AddressFields) error {
	checks := []struct {
		name  string
		value string
		max   int
	}{
		{"address_line", f.AddressLine, 255},
		{"city", f.City, 100},
		{"postcode", f.Postcode, 10},
		{"state", f.State, 100},
		{"country", f.Country, 100},
	}
	for _, c := range checks {
		if c.value == "" {
			return apperr.Validation("%s 不能为空", c.name)
		}
		if utf8.RuneCountInString(c.value) > c.max {
			return apperr.Validation("%s 不能超过 %d 个字符", c.name, c.max)
		}
	}
	return nil
}

// ==================== 地址 ====================

// GetOrCreate 按内容去重; 内容相同的并发请求得到同一条地址
func (s *AddressService) GetOrCreate(ctx context.Context, fields dto.AddressFields) (*model.Address, error) {
	return getOrCreateAddress(ctx, s.repo, fields)
}

func getOrCreateAddress(ctx context.Context, repo repository.AddressRepository, fields dto.AddressFields) (*model.Address, error) {
	n := NormalizeAddress(fields)
	if err := validateAddress(n); err != nil {
		return nil, err
	}
	addr, err := repo.GetOrCreate(ctx, &model.Address{
		AddressLine: n.AddressLine,
		City:        n.City,
		Postcode:    n.Postcode,
		State:       n.State,
		Country:     n.Country,
		ContentHash: AddressHash(n),
	})
	if err != nil {
		return nil, apperr.FromStore(err, "地址")
	}
	return addr, nil
}

// ==================== 地址簿 ====================

// Create 添加到地址簿; 用户的第一条地址自动成为默认
func (s *AddressService) Create(ctx context.Context, actor model.Actor, req *dto.CreateAddressRequest) (*dto.UserAddressInfo, error) {
	if actor.IsAnonymous() {
		return nil, apperr.Permission("请先登录")
	}

	var linkID int64
	err := s.repo.Transaction(ctx, func(tx repository.AddressRepository) error {
		addr, err := getOrCreateAddress(ctx, tx, req.AddressFields)
		if err != nil {
			return err
		}
		link, err := linkAddress(ctx, tx, actor.UserID, addr.ID)
		if err != nil {
			return err
		}
		linkID = link.ID
		return ensureDefault(ctx, tx, actor.UserID, link.ID, req.IsDefault)
	})
	if err != nil {
		return nil, err
	}
	return s.linkInfo(ctx, linkID)
}

// List 当前用户的地址簿, 默认地址在前
func (s *AddressService) List(ctx context.Context, actor model.Actor) ([]dto.UserAddressInfo, error) {
	if actor.IsAnonymous() {
		return nil, apperr.Permission("请先登录")
	}
	links, err := s.repo.ListLinks(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.FromStore(err, "地址")
	}
	out := make([]dto.UserAddressInfo, len(links))
	for i := range links {
		out[i] = toUserAddressInfo(&links[i])
	}
	return out, nil
}

// Update 修改地址簿条目: 关联到新内容对应的地址, 旧地址记录不变
func (s *AddressService) Update(ctx context.Context, actor model.Actor, linkID int64, req *dto.UpdateAddressRequest) (*dto.UserAddressInfo, error) {
	err := s.repo.Transaction(ctx, func(tx repository.AddressRepository) error {
		link, err := ownedLink(ctx, tx, actor, linkID)
		if err != nil {
			return err
		}
		addr, err := getOrCreateAddress(ctx, tx, req.AddressFields)
		if err != nil {
			return err
		}

		if addr.ID != link.AddressID {
			other, err := tx.FindLink(ctx, actor.UserID, addr.ID)
			if err == nil && other != nil {
				return apperr.Conflict("地址簿中已有相同地址")
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.FromStore(err, "地址")
			}
			if err := tx.Relink(ctx, link.ID, addr.ID); err != nil {
				return apperr.FromStore(err, "地址")
			}
		}

		// is_default=false 不会取消默认, 改默认请对另一条调用 SetDefault
		if req.IsDefault != nil && *req.IsDefault && !link.IsDefault {
			return apperr.FromStore(tx.SetDefault(ctx, actor.UserID, link.ID), "地址")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.linkInfo(ctx, linkID)
}

// Remove 从地址簿移除, 地址记录保留; 移除默认地址时最早添加的一条成为默认
func (s *AddressService) Remove(ctx context.Context, actor model.Actor, linkID int64) error {
	return s.repo.Transaction(ctx, func(tx repository.AddressRepository) error {
		link, err := ownedLink(ctx, tx, actor, linkID)
		if err != nil {
			return err
		}
		if err := tx.Unlink(ctx, link.ID); err != nil {
			return apperr.FromStore(err, "地址")
		}
		if !link.IsDefault {
			return nil
		}

		next, err := tx.OldestLink(ctx, actor.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return apperr.FromStore(err, "地址")
		}
		return apperr.FromStore(tx.SetDefault(ctx, actor.UserID, next.ID), "地址")
	})
}

// SetDefault 设为默认地址, 同时取消原默认
func (s *AddressService) SetDefault(ctx context.Context, actor model.Actor, linkID int64) (*dto.UserAddressInfo, error) {
	if _, err := ownedLink(ctx, s.repo, actor, linkID); err != nil {
		return nil, err
	}
	if err := s.repo.SetDefault(ctx, actor.UserID, linkID); err != nil {
		return nil, apperr.FromStore(err, "地址")
	}
	return s.linkInfo(ctx, linkID)
}

// Checkout 结算地址; 游客只得到独立地址, 登录用户可顺便存入地址簿 (已存在则跳过)
func (s *AddressService) Checkout(ctx context.Context, actor model.Actor, req *dto.CheckoutAddressRequest) (*dto.CheckoutAddressResponse, error) {
	resp := &dto.CheckoutAddressResponse{}
	err := s.repo.Transaction(ctx, func(tx repository.AddressRepository) error {
		addr, err := getOrCreateAddress(ctx, tx, req.AddressFields)
		if err != nil {
			return err
		}
		resp.Address = toAddressInfo(addr)
		if actor.IsAnonymous() || !req.SaveToAddressBook {
			return nil
		}

		existing, err := tx.FindLink(ctx, actor.UserID, addr.ID)
		if err == nil {
			resp.LinkID = existing.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.FromStore(err, "地址")
		}

		link, err := linkAddress(ctx, tx, actor.UserID, addr.ID)
		if err != nil {
			return err
		}
		resp.Saved = true
		resp.LinkID = link.ID
		return ensureDefault(ctx, tx, actor.UserID, link.ID, false)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ==================== 辅助方法 ====================

// linkAddress 预检查 + 唯一索引兜底, 两者都映射为冲突
func linkAddress(ctx context.Context, repo repository.AddressRepository, userID, addressID int64) (*model.UserAddress, error) {
	if _, err := repo.FindLink(ctx, userID, addressID); err == nil {
		return nil, apperr.Conflict("地址簿中已有相同地址")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.FromStore(err, "地址")
	}

	link := &model.UserAddress{UserID: userID, AddressID: addressID}
	if err := repo.Link(ctx, link); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("地址簿中已有相同地址")
		}
		return nil, apperr.FromStore(err, "地址")
	}
	return link, nil
}

// ensureDefault force 为 true 或用户还没有默认地址时设为默认
func ensureDefault(ctx context.Context, repo repository.AddressRepository, userID, linkID int64, force bool) error {
	if !force {
		count, err := repo.CountDefaults(ctx, userID)
		if err != nil {
			return apperr.FromStore(err, "地址")
		}
		if count > 0 {
			return nil
		}
	}
	return apperr.FromStore(repo.SetDefault(ctx, userID, linkID), "用户")
}

func ownedLink(ctx context.Context, repo repository.AddressRepository, actor model.Actor, linkID int64) (*model.UserAddress, error) {
	if actor.IsAnonymous() {
		return nil, apperr.Permission("请先登录")
	}
	link, err := repo.GetLink(ctx, linkID)
	if err != nil {
		return nil, apperr.FromStore(err, "地址")
	}
	if link.UserID != actor.UserID {
		return nil, apperr.Permission("无权操作他人的地址")
	}
	return link, nil
}

func (s *AddressService) linkInfo(ctx context.Context, linkID int64) (*dto.UserAddressInfo, error) {
	link, err := s.repo.GetLink(ctx, linkID)
	if err != nil {
		return nil, apperr.FromStore(err, "地址")
	}
	info := toUserAddressInfo(link)
	return &info, nil
}

func toAddressInfo(a *model.Address) dto.AddressInfo {
	return dto.AddressInfo{
		ID:          a.ID,
		AddressLine: a.AddressLine,
		City:        a.City,
		Postcode:    a.Postcode,
		State:       a.State,
		Country:     a.Country,
	}
}

func toUserAddressInfo(link *model.UserAddress) dto.UserAddressInfo {
	info := dto.UserAddressInfo{ID: link.ID, IsDefault: link.IsDefault, CreatedAt: link.CreatedAt}
	if link.Address != nil {
		info.Address = toAddressInfo(link.Address)
	}
	return info
}
