package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisboswell/loungr/internal/auth"
	"github.com/louisboswell/loungr/internal/config"
	"github.com/louisboswell/loungr/internal/models"
	"github.com/louisboswell/loungr/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	userSvc *service.UserService
	postSvc *service.PostService
	roomSvc *service.RoomService
	cfg     config.Config
}

func NewHandler(userSvc *service.UserService, postSvc *service.PostService, roomSvc *service.RoomService, cfg config.Config) *Handler {
	return &Handler{userSvc: userSvc, postSvc: postSvc, roomSvc: roomSvc, cfg: cfg}
}

// respondErr 把业务错误映射到 HTTP 状态码；未识别的错误记日志并返回 500。
func respondErr(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, service.ErrExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "try again later"})
	default:
		log.Error().Err(err).Str("op", op).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Username) < 2 || len(req.Username) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	if req.PasswordConfirm != "" && req.PasswordConfirm != req.Password {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
		return
	}
	user, err := h.userSvc.Register(req.Username, req.Email, req.Password)
	if err != nil {
		respondErr(c, err, "register")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.Login(req.Username, req.Password)
	if err != nil {
		respondErr(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          gin.H{"id": result.User.ID, "username": result.User.Username},
	})
}

// RefreshToken 处理 token 刷新请求。
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.RefreshTokens(req.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("refresh token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": result.AccessToken, "refresh_token": result.RefreshToken})
}

type postDTO struct {
	ID        uint      `json:"id"`
	Body      string    `json:"body"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Likes     int64     `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

// renderPosts 批量补齐作者用户名与点赞数。
func (h *Handler) renderPosts(posts []models.Post) ([]postDTO, error) {
	seen := make(map[uint]struct{}, len(posts))
	userIDs := make([]uint, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		userIDs = append(userIDs, p.UserID)
	}
	usernames, err := h.userSvc.UsernamesFor(userIDs)
	if err != nil {
		return nil, err
	}
	out := make([]postDTO, 0, len(posts))
	for _, p := range posts {
		likes, err := h.postSvc.LikeCount(p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, postDTO{ID: p.ID, Body: p.Body, UserID: p.UserID, Username: usernames[p.UserID], Likes: likes, CreatedAt: p.CreatedAt})
	}
	return out, nil
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (h *Handler) respondPage(c *gin.Context, page *service.Page, op string) {
	out, err := h.renderPosts(page.Posts)
	if err != nil {
		respondErr(c, err, op)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"posts":    out,
		"page":     page.Page,
		"has_next": page.HasNext,
		"has_prev": page.HasPrev,
	})
}

// Feed 返回当前用户的时间线。
func (h *Handler) Feed(c *gin.Context) {
	page, err := h.postSvc.FeedFor(auth.GetUserID(c), pageParam(c), h.cfg.FeedPageSize)
	if err != nil {
		respondErr(c, err, "feed")
		return
	}
	h.respondPage(c, page, "feed")
}

// Explore 返回全站最新帖子。
func (h *Handler) Explore(c *gin.Context) {
	page, err := h.postSvc.AllByRecency(pageParam(c), h.cfg.FeedPageSize)
	if err != nil {
		respondErr(c, err, "explore")
		return
	}
	h.respondPage(c, page, "explore")
}

// CreatePost 发布新帖。
func (h *Handler) CreatePost(c *gin.Context) {
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	post, err := h.postSvc.Create(auth.GetUserID(c), req.Body)
	if err != nil {
		respondErr(c, err, "create post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": post.ID, "body": post.Body, "created_at": post.CreatedAt})
}

// UserProfile 返回用户主页：资料、关注统计与其帖子。
func (h *Handler) UserProfile(c *gin.Context) {
	user, err := h.userSvc.ByUsername(c.Param("username"))
	if err != nil {
		respondErr(c, err, "user profile")
		return
	}
	followers, err := h.userSvc.CountFollowers(user.ID)
	if err != nil {
		respondErr(c, err, "user profile")
		return
	}
	following, err := h.userSvc.CountFollowing(user.ID)
	if err != nil {
		respondErr(c, err, "user profile")
		return
	}
	isFollowing, err := h.userSvc.IsFollowing(auth.GetUserID(c), user.ID)
	if err != nil {
		respondErr(c, err, "user profile")
		return
	}
	page, err := h.postSvc.ByUser(user.ID, pageParam(c), h.cfg.FeedPageSize)
	if err != nil {
		respondErr(c, err, "user profile")
		return
	}
	posts, err := h.renderPosts(page.Posts)
	if err != nil {
		respondErr(c, err, "user profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":        user.ID,
			"username":  user.Username,
			"about_me":  user.AboutMe,
			"last_seen": user.LastSeen,
			"avatar":    service.AvatarURL(user.Email, 128),
		},
		"followers":    followers,
		"following":    following,
		"is_following": isFollowing,
		"posts":        posts,
		"page":         page.Page,
		"has_next":     page.HasNext,
		"has_prev":     page.HasPrev,
	})
}

// UpdateMe 更新当前用户的个人简介。
func (h *Handler) UpdateMe(c *gin.Context) {
	var req struct {
		AboutMe string `json:"about_me"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.userSvc.UpdateProfile(auth.GetUserID(c), req.AboutMe); err != nil {
		respondErr(c, err, "update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"about_me": req.AboutMe})
}

// FollowUser 关注路径参数指定的用户。
func (h *Handler) FollowUser(c *gin.Context) {
	target, err := h.userSvc.ByUsername(c.Param("username"))
	if err != nil {
		respondErr(c, err, "follow")
		return
	}
	callerID := auth.GetUserID(c)
	if target.ID == callerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot follow yourself"})
		return
	}
	if err := h.userSvc.Follow(callerID, target.ID); err != nil {
		respondErr(c, err, "follow")
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": true, "username": target.Username})
}

// UnfollowUser 取消关注。
func (h *Handler) UnfollowUser(c *gin.Context) {
	target, err := h.userSvc.ByUsername(c.Param("username"))
	if err != nil {
		respondErr(c, err, "unfollow")
		return
	}
	if err := h.userSvc.Unfollow(auth.GetUserID(c), target.ID); err != nil {
		respondErr(c, err, "unfollow")
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": false, "username": target.Username})
}

func postIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return 0, false
	}
	return uint(id), true
}

// LikePost 点赞，返回新的点赞状态与计数。
func (h *Handler) LikePost(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	if err := h.postSvc.Like(auth.GetUserID(c), postID); err != nil {
		respondErr(c, err, "like")
		return
	}
	likes, err := h.postSvc.LikeCount(postID)
	if err != nil {
		respondErr(c, err, "like")
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": true, "likes": likes})
}

// UnlikePost 取消点赞。
func (h *Handler) UnlikePost(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	if err := h.postSvc.Unlike(auth.GetUserID(c), postID); err != nil {
		respondErr(c, err, "unlike")
		return
	}
	likes, err := h.postSvc.LikeCount(postID)
	if err != nil {
		respondErr(c, err, "unlike")
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": false, "likes": likes})
}

// CreateReply 给帖子添加回复。
func (h *Handler) CreateReply(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	reply, err := h.postSvc.CreateReply(auth.GetUserID(c), postID, req.Body)
	if err != nil {
		respondErr(c, err, "create reply")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": reply.ID, "body": reply.Body, "created_at": reply.CreatedAt})
}

// ListReplies 返回帖子的全部回复。
func (h *Handler) ListReplies(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}
	if _, err := h.postSvc.ByID(postID); err != nil {
		respondErr(c, err, "list replies")
		return
	}
	replies, err := h.postSvc.RepliesFor(postID)
	if err != nil {
		respondErr(c, err, "list replies")
		return
	}
	type replyDTO struct {
		ID        uint      `json:"id"`
		Body      string    `json:"body"`
		UserID    uint      `json:"user_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]replyDTO, 0, len(replies))
	for _, rep := range replies {
		out = append(out, replyDTO{ID: rep.ID, Body: rep.Body, UserID: rep.UserID, CreatedAt: rep.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"replies": out})
}

type roomDTO struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AdminID     uint   `json:"admin_id"`
}

func toRoomDTOs(rooms []models.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomDTO{Code: r.Code, Name: r.Name, Description: r.Description, AdminID: r.AdminID})
	}
	return out
}

// CreateRoom 创建房间，创建者成为管理员与第一个成员。
func (h *Handler) CreateRoom(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	room, err := h.roomSvc.Create(auth.GetUserID(c), req.Name, req.Description)
	if err != nil {
		respondErr(c, err, "create room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": room.Code, "name": room.Name, "description": room.Description, "admin_id": room.AdminID})
}

// ListRooms 返回全部房间（契约上不分页）。
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.roomSvc.All()
	if err != nil {
		respondErr(c, err, "list rooms")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": toRoomDTOs(rooms)})
}

// MyRooms 返回当前用户加入的房间。
func (h *Handler) MyRooms(c *gin.Context) {
	rooms, err := h.roomSvc.RoomsOf(auth.GetUserID(c))
	if err != nil {
		respondErr(c, err, "my rooms")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": toRoomDTOs(rooms)})
}

// DeleteRoom 删除房间，仅管理员可操作。
func (h *Handler) DeleteRoom(c *gin.Context) {
	if err := h.roomSvc.Delete(auth.GetUserID(c), c.Param("code")); err != nil {
		respondErr(c, err, "delete room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// JoinRoom 加入房间，重复加入为无操作。
func (h *Handler) JoinRoom(c *gin.Context) {
	if err := h.roomSvc.Join(auth.GetUserID(c), c.Param("code")); err != nil {
		respondErr(c, err, "join room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": true})
}

// LeaveRoom 退出房间。
func (h *Handler) LeaveRoom(c *gin.Context) {
	if err := h.roomSvc.Leave(auth.GetUserID(c), c.Param("code")); err != nil {
		respondErr(c, err, "leave room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": false})
}

// RoomMembers 返回房间成员列表。
func (h *Handler) RoomMembers(c *gin.Context) {
	members, err := h.roomSvc.Members(c.Param("code"))
	if err != nil {
		respondErr(c, err, "room members")
		return
	}
	type memberDTO struct {
		ID       uint   `json:"id"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	}
	out := make([]memberDTO, 0, len(members))
	for _, m := range members {
		out = append(out, memberDTO{ID: m.ID, Username: m.Username, Avatar: service.AvatarURL(m.Email, 64)})
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}
