package service

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/louisboswell/loungr/internal/models"

	"gorm.io/gorm"
)

// RoomService 封装房间与成员关系相关的业务逻辑。
type RoomService struct {
	db *gorm.DB
}

func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{db: db}
}

// 短码生成的最大重试次数，超过则返回 ErrExhausted。
const codeRetries = 5

// newCode 截取 uuid 前 8 位作为房间短码。
func newCode() string {
	return uuid.NewString()[:8]
}

// Create 创建房间：生成短码、设置创建者为管理员并作为第一个成员。
// 房间名冲突返回 ErrDuplicate，短码重试耗尽返回 ErrExhausted。
func (s *RoomService) Create(creatorID uint, name, description string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 40 || len(description) > 250 {
		return nil, ErrInvalidInput
	}
	var count int64
	if err := s.db.Model(&models.Room{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicate
	}

	var room *models.Room
	err := s.db.Transaction(func(tx *gorm.DB) error {
		code := ""
		for i := 0; i < codeRetries; i++ {
			candidate := newCode()
			var n int64
			if err := tx.Model(&models.Room{}).Where("code = ?", candidate).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				code = candidate
				break
			}
		}
		if code == "" {
			return ErrExhausted
		}
		r := models.Room{Code: code, Name: name, Description: description, AdminID: creatorID}
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Membership{UserID: creatorID, RoomCode: code}).Error; err != nil {
			return err
		}
		room = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ByCode 按短码查找房间。
func (s *RoomService) ByCode(code string) (*models.Room, error) {
	var room models.Room
	if err := s.db.Where("code = ?", code).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// Delete 删除房间，仅管理员可操作。成员边在同一事务里显式清理，
// 不依赖数据库级联。
func (s *RoomService) Delete(requesterID uint, code string) error {
	room, err := s.ByCode(code)
	if err != nil {
		return err
	}
	if room.AdminID != requesterID {
		return ErrForbidden
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_code = ?", code).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		return tx.Where("code = ?", code).Delete(&models.Room{}).Error
	})
}

// Join 插入成员边。房间不存在返回 ErrNotFound，重复加入为无操作。
func (s *RoomService) Join(userID uint, code string) error {
	if _, err := s.ByCode(code); err != nil {
		return err
	}
	var count int64
	if err := s.db.Model(&models.Membership{}).
		Where("user_id = ? AND room_code = ?", userID, code).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	m := models.Membership{UserID: userID, RoomCode: code}
	if err := s.db.Create(&m).Error; err != nil {
		// 并发重复加入撞上唯一索引，等价于已是成员。
		var n int64
		if err2 := s.db.Model(&models.Membership{}).
			Where("user_id = ? AND room_code = ?", userID, code).
			Count(&n).Error; err2 == nil && n > 0 {
			return nil
		}
		return err
	}
	return nil
}

// Leave 删除成员边，不存在时为无操作。
func (s *RoomService) Leave(userID uint, code string) error {
	return s.db.
		Where("user_id = ? AND room_code = ?", userID, code).
		Delete(&models.Membership{}).Error
}

// Members 返回房间全部成员，按加入时间升序。房间不存在返回 ErrNotFound。
func (s *RoomService) Members(code string) ([]models.User, error) {
	if _, err := s.ByCode(code); err != nil {
		return nil, err
	}
	var users []models.User
	err := s.db.Model(&models.User{}).
		Select("users.*").
		Joins("JOIN memberships ON memberships.user_id = users.id").
		Where("memberships.room_code = ?", code).
		Order("memberships.created_at ASC, memberships.id ASC").
		Find(&users).Error
	return users, err
}

// RoomsOf 返回 userID 加入的全部房间。
func (s *RoomService) RoomsOf(userID uint) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.Model(&models.Room{}).
		Select("rooms.*").
		Joins("JOIN memberships ON memberships.room_code = rooms.code").
		Where("memberships.user_id = ?", userID).
		Order("memberships.created_at ASC").
		Find(&rooms).Error
	return rooms, err
}

// All 返回全部房间。房间数量预期很少，这里不做分页（有意保持的契约）。
func (s *RoomService) All() ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.Order("created_at ASC, code ASC").Find(&rooms).Error
	return rooms, err
}
