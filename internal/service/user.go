package service

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisboswell/loungr/internal/auth"
	"github.com/louisboswell/loungr/internal/config"
	"github.com/louisboswell/loungr/internal/models"

	"gorm.io/gorm"
)

// UserService 封装用户与关注关系相关的业务逻辑。
type UserService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewUserService(db *gorm.DB, cfg config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

// Register 注册新用户。用户名或邮箱已存在时返回 ErrDuplicate。
func (s *UserService) Register(username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	var count int64
	if err := s.db.Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicate
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Username: username, Email: email, PasswordHash: hash, LastSeen: time.Now()}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// LoginResult 登录成功后返回的数据。
type LoginResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"-"`
}

// Login 校验用户名密码并签发 token 对。
// 用户不存在与密码错误统一返回 ErrInvalidCredentials，外部不可区分。
func (s *UserService) Login(username, password string) (*LoginResult, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	at, err := auth.GenerateAccessToken(user.ID, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
	if err != nil {
		return nil, err
	}
	rt, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	exp := time.Now().Add(time.Duration(s.cfg.RefreshTokenTTLDays) * 24 * time.Hour)
	if err := auth.SaveRefreshToken(s.db, user.ID, rt, exp); err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Update("last_seen", now).Error; err != nil {
		return nil, err
	}
	user.LastSeen = now
	return &LoginResult{AccessToken: at, RefreshToken: rt, User: user}, nil
}

// RefreshResult 刷新 token 后返回的新 token 对。
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokens 验证旧 refresh token 并签发新 token 对（旋转刷新）。
func (s *UserService) RefreshTokens(oldRT string) (*RefreshResult, error) {
	var result RefreshResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec, err := auth.ValidateRefreshToken(tx, oldRT)
		if err != nil {
			return err
		}
		if err := auth.RevokeRefreshToken(tx, oldRT); err != nil {
			return err
		}
		at, err := auth.GenerateAccessToken(rec.UserID, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
		if err != nil {
			return err
		}
		newRT, err := auth.GenerateRefreshToken()
		if err != nil {
			return err
		}
		exp := time.Now().Add(time.Duration(s.cfg.RefreshTokenTTLDays) * 24 * time.Hour)
		if err := auth.SaveRefreshToken(tx, rec.UserID, newRT, exp); err != nil {
			return err
		}
		result.AccessToken = at
		result.RefreshToken = newRT
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ByUsername 按用户名查找用户。
func (s *UserService) ByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile 更新个人简介，限长 140。
func (s *UserService) UpdateProfile(userID uint, aboutMe string) error {
	if len(aboutMe) > 140 {
		return ErrInvalidInput
	}
	return s.db.Model(&models.User{}).Where("id = ?", userID).Update("about_me", aboutMe).Error
}

// Follow 插入关注边。自关注直接拒绝，已关注时为无操作。
func (s *UserService) Follow(followerID, followedID uint) error {
	if followerID == followedID {
		return ErrInvalidInput
	}
	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ?", followedID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	following, err := s.IsFollowing(followerID, followedID)
	if err != nil {
		return err
	}
	if following {
		return nil
	}
	edge := models.Follow{FollowerID: followerID, FollowedID: followedID}
	if err := s.db.Create(&edge).Error; err != nil {
		// 并发重复插入会撞上唯一索引；复查后已存在则视为成功。
		if again, err2 := s.IsFollowing(followerID, followedID); err2 == nil && again {
			return nil
		}
		return err
	}
	return nil
}

// Unfollow 删除关注边，不存在时为无操作。
func (s *UserService) Unfollow(followerID, followedID uint) error {
	return s.db.
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{}).Error
}

// IsFollowing 判断 a 是否关注 b。
func (s *UserService) IsFollowing(a, b uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", a, b).
		Count(&count).Error
	return count > 0, err
}

// CountFollowers 统计关注 userID 的人数。
func (s *UserService) CountFollowers(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Follow{}).Where("followed_id = ?", userID).Count(&count).Error
	return count, err
}

// CountFollowing 统计 userID 关注的人数。
func (s *UserService) CountFollowing(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&count).Error
	return count, err
}

// UsernamesFor 批量获取用户名，用于渲染帖子列表。
func (s *UserService) UsernamesFor(userIDs []uint) (map[uint]string, error) {
	usernames := make(map[uint]string, len(userIDs))
	if len(userIDs) == 0 {
		return usernames, nil
	}
	var users []models.User
	if err := s.db.Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		usernames[u.ID] = u.Username
	}
	return usernames, nil
}

// AvatarURL 基于邮箱生成 gravatar identicon 地址。
func AvatarURL(email string, size int) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon&s=%d", hex.EncodeToString(sum[:]), size)
}
