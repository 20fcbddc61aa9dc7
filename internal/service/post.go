package service

import (
	"errors"

	"github.com/louisboswell/loungr/internal/metrics"
	"github.com/louisboswell/loungr/internal/models"

	"gorm.io/gorm"
)

// PostService 封装帖子、点赞与时间线相关的业务逻辑。
type PostService struct {
	db *gorm.DB
}

func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// Page 是统一的分页查询结果。页码从 1 开始，越界页返回空页而不是错误。
type Page struct {
	Posts   []models.Post `json:"posts"`
	Page    int           `json:"page"`
	HasNext bool          `json:"has_next"`
	HasPrev bool          `json:"has_prev"`
}

// Create 发布一条新帖，正文限长 1~140。
func (s *PostService) Create(authorID uint, body string) (*models.Post, error) {
	if len(body) == 0 || len(body) > 140 {
		return nil, ErrInvalidInput
	}
	post := models.Post{Body: body, UserID: authorID}
	if err := s.db.Create(&post).Error; err != nil {
		return nil, err
	}
	metrics.PostsCreatedTotal.Inc()
	return &post, nil
}

// ByID 按 id 查找帖子。
func (s *PostService) ByID(postID uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// Like 插入点赞边，帖子不存在返回 ErrNotFound，重复点赞为无操作。
func (s *PostService) Like(userID, postID uint) error {
	if _, err := s.ByID(postID); err != nil {
		return err
	}
	liked, err := s.HasLiked(userID, postID)
	if err != nil {
		return err
	}
	if liked {
		return nil
	}
	like := models.PostLike{UserID: userID, PostID: postID}
	if err := s.db.Create(&like).Error; err != nil {
		// 并发重复点赞撞上唯一索引；复查后已存在则视为成功。
		if again, err2 := s.HasLiked(userID, postID); err2 == nil && again {
			return nil
		}
		return err
	}
	metrics.LikesTotal.Inc()
	return nil
}

// Unlike 删除点赞边，不存在时为无操作。
func (s *PostService) Unlike(userID, postID uint) error {
	return s.db.
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.PostLike{}).Error
}

// HasLiked 判断 userID 是否点赞过 postID。
func (s *PostService) HasLiked(userID, postID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.PostLike{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	return count > 0, err
}

// LikeCount 统计某帖的点赞数。
func (s *PostService) LikeCount(postID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

// FeedFor 返回 userID 的时间线：自己发的加上关注对象发的帖子，
// 去重后按时间倒序分页。即使出现自关注边，DISTINCT 也保证每帖只出现一次。
func (s *PostService) FeedFor(userID uint, page, pageSize int) (*Page, error) {
	q := s.db.Model(&models.Post{}).
		Distinct("posts.*").
		Joins("LEFT JOIN follows ON follows.followed_id = posts.user_id AND follows.follower_id = ?", userID).
		Where("posts.user_id = ? OR follows.id IS NOT NULL", userID)
	return s.paginate(q, page, pageSize)
}

// ByUser 返回指定作者的帖子，按时间倒序分页。
func (s *PostService) ByUser(userID uint, page, pageSize int) (*Page, error) {
	q := s.db.Model(&models.Post{}).Where("posts.user_id = ?", userID)
	return s.paginate(q, page, pageSize)
}

// AllByRecency 返回全站最新帖子，按时间倒序分页。
func (s *PostService) AllByRecency(page, pageSize int) (*Page, error) {
	q := s.db.Model(&models.Post{})
	return s.paginate(q, page, pageSize)
}

// paginate 在查询上套统一的分页契约：多取一条来判断是否还有下一页。
func (s *PostService) paginate(q *gorm.DB, page, pageSize int) (*Page, error) {
	if page < 1 || pageSize < 1 {
		return nil, ErrInvalidInput
	}
	var posts []models.Post
	err := q.Order("posts.created_at DESC, posts.id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize + 1).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	hasNext := len(posts) > pageSize
	if hasNext {
		posts = posts[:pageSize]
	}
	return &Page{Posts: posts, Page: page, HasNext: hasNext, HasPrev: page > 1}, nil
}

// CreateReply 给某帖添加一条回复，正文限长 1~50。
func (s *PostService) CreateReply(userID, postID uint, body string) (*models.Reply, error) {
	if len(body) == 0 || len(body) > 50 {
		return nil, ErrInvalidInput
	}
	if _, err := s.ByID(postID); err != nil {
		return nil, err
	}
	reply := models.Reply{Body: body, UserID: userID, PostID: postID}
	if err := s.db.Create(&reply).Error; err != nil {
		return nil, err
	}
	return &reply, nil
}

// RepliesFor 返回某帖的全部回复，按时间升序。
func (s *PostService) RepliesFor(postID uint) ([]models.Reply, error) {
	var replies []models.Reply
	err := s.db.Where("post_id = ?", postID).Order("created_at ASC, id ASC").Find(&replies).Error
	return replies, err
}
