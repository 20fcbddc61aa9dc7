package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:120;not null"`
	PasswordHash string `gorm:"not null"`
	AboutMe      string `gorm:"size:140"`
	LastSeen     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Follow 是有向关注边：follower 关注 followed。
// (follower_id, followed_id) 上的唯一索引保证同一条边最多存在一次，
// 并发重复插入会在存储层直接冲突而不是产生脏数据。
type Follow struct {
	ID         uint `gorm:"primaryKey"`
	FollowerID uint `gorm:"not null;uniqueIndex:idx_follower_followed"`
	FollowedID uint `gorm:"not null;uniqueIndex:idx_follower_followed"`
	CreatedAt  time.Time
}

type Post struct {
	ID        uint      `gorm:"primaryKey"`
	Body      string    `gorm:"size:140;not null"`
	UserID    uint      `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"index"`
}

// Reply 是针对某条 Post 的短回复。
type Reply struct {
	ID        uint   `gorm:"primaryKey"`
	Body      string `gorm:"size:50;not null"`
	UserID    uint   `gorm:"not null"`
	PostID    uint   `gorm:"index;not null"`
	CreatedAt time.Time
}

// PostLike 是 (user, post) 点赞边，唯一索引保证每人每帖最多一条。
type PostLike struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_user_post"`
	PostID    uint `gorm:"not null;uniqueIndex:idx_user_post"`
	CreatedAt time.Time
}

// Room 的主键是创建时生成的 8 位短码，而不是自增 id。
type Room struct {
	Code        string `gorm:"primaryKey;size:8"`
	Name        string `gorm:"uniqueIndex;size:40;not null"`
	Description string `gorm:"size:250"`
	AdminID     uint   `gorm:"not null"`
	CreatedAt   time.Time
}

// Membership 是 (user, room) 成员边，唯一索引让重复加入退化为无操作。
type Membership struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_user_room"`
	RoomCode  string `gorm:"size:8;not null;uniqueIndex:idx_user_room"`
	CreatedAt time.Time
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
