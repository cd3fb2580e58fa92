package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/john0isaac/fastroom/internal/domain"
)

// GormRepository implements Repository against any GORM-supported database.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) CreateUser(ctx context.Context, user *domain.User) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUsernameTaken
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *GormRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepository) GetUserByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepository) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *GormRepository) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *GormRepository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}

func (r *GormRepository) RevokeUserTokens(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}

func (r *GormRepository) EnsureRoomAndMembership(ctx context.Context, roomName string, userID uint) (*domain.Room, *domain.RoomMember, error) {
	var room domain.Room
	var member domain.RoomMember

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", roomName).First(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			room = domain.Room{Name: roomName}
			if err := tx.Create(&room).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		err = tx.Where("room_id = ? AND user_id = ?", room.ID, userID).First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			member = domain.RoomMember{RoomID: room.ID, UserID: userID}
			return tx.Create(&member).Error
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &room, &member, nil
}

func (r *GormRepository) GetRoomByName(ctx context.Context, name string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *GormRepository) GetMember(ctx context.Context, roomID, userID uint) (*domain.RoomMember, error) {
	var member domain.RoomMember
	err := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *GormRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// historyRow is the scan target for message/username joins. Username is a
// pointer because the join is LEFT and authors can be deleted.
type historyRow struct {
	ID        uint
	Username  *string
	Content   string
	CreatedAt time.Time
}

func (row historyRow) toHistoryMessage() domain.HistoryMessage {
	msg := domain.HistoryMessage{
		ID:        row.ID,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
	}
	if row.Username != nil {
		msg.Username = *row.Username
	}
	return msg
}

func (r *GormRepository) RecentMessages(ctx context.Context, roomID uint, limit int) ([]domain.HistoryMessage, error) {
	var rows []historyRow
	err := r.historyQuery(ctx, roomID).
		Order("messages.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return historyFromRows(rows), nil
}

func (r *GormRepository) MessagesBefore(ctx context.Context, roomID uint, beforeID int64, limit int) ([]domain.HistoryMessage, error) {
	var rows []historyRow
	err := r.historyQuery(ctx, roomID).
		Where("messages.id < ?", beforeID).
		Order("messages.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return historyFromRows(rows), nil
}

// historyFromRows converts newest-first rows into chronological history.
func historyFromRows(rows []historyRow) []domain.HistoryMessage {
	msgs := make([]domain.HistoryMessage, len(rows))
	for i, row := range rows {
		msgs[len(rows)-1-i] = row.toHistoryMessage()
	}
	return msgs
}

func (r *GormRepository) historyQuery(ctx context.Context, roomID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Message{}).
		Select("messages.id, users.username, messages.content, messages.created_at").
		Joins("LEFT JOIN users ON users.id = messages.user_id").
		Where("messages.room_id = ? AND messages.is_deleted = ?", roomID, false)
}

func (r *GormRepository) ListRooms(ctx context.Context, limit, offset int, ascending bool) ([]domain.Room, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Room{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := "id DESC"
	if ascending {
		order = "id ASC"
	}
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Order(order).
		Limit(limit).
		Offset(offset).
		Find(&rooms).Error
	if err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

func (r *GormRepository) CreateRoom(ctx context.Context, room *domain.Room) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("name = ?", room.Name).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrRoomNameTaken
	}
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *GormRepository) GetRoomByID(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *GormRepository) UpdateRoom(ctx context.Context, room *domain.Room) error {
	return r.db.WithContext(ctx).Save(room).Error
}

func (r *GormRepository) DeleteRoom(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&domain.RoomMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.Room{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRoomNotFound
		}
		return nil
	})
}

// memberRow is the scan target for membership/username joins.
type memberRow struct {
	UserID      uint
	Username    *string
	IsModerator bool
	IsBanned    bool
	IsMuted     bool
	JoinedAt    time.Time
}

func (r *GormRepository) ListMembers(ctx context.Context, roomID uint, limit, offset int) ([]domain.MemberInfo, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ?", roomID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []memberRow
	err := r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Select("room_members.user_id, users.username, room_members.is_moderator, room_members.is_banned, room_members.is_muted, room_members.joined_at").
		Joins("LEFT JOIN users ON users.id = room_members.user_id").
		Where("room_members.room_id = ?", roomID).
		Order("room_members.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	members := make([]domain.MemberInfo, len(rows))
	for i, row := range rows {
		members[i] = domain.MemberInfo{
			UserID:      row.UserID,
			IsModerator: row.IsModerator,
			IsBanned:    row.IsBanned,
			IsMuted:     row.IsMuted,
			JoinedAt:    row.JoinedAt,
		}
		if row.Username != nil {
			members[i].Username = *row.Username
		}
	}
	return members, total, nil
}

func (r *GormRepository) AddMember(ctx context.Context, member *domain.RoomMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *GormRepository) RemoveMember(ctx context.Context, roomID, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&domain.RoomMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *GormRepository) UpdateMember(ctx context.Context, member *domain.RoomMember) error {
	return r.db.WithContext(ctx).Save(member).Error
}

func (r *GormRepository) ListMessages(ctx context.Context, roomID uint, limit, offset int) ([]domain.HistoryMessage, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("room_id = ? AND is_deleted = ?", roomID, false).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []historyRow
	err := r.historyQuery(ctx, roomID).
		Order("messages.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	msgs := make([]domain.HistoryMessage, len(rows))
	for i, row := range rows {
		msgs[i] = row.toHistoryMessage()
	}
	return msgs, total, nil
}

func (r *GormRepository) GetMessage(ctx context.Context, roomID uint, messageID uint) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND id = ?", roomID, messageID).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *GormRepository) UpdateMessage(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Save(msg).Error
}

func (r *GormRepository) DeleteMessage(ctx context.Context, roomID uint, messageID uint) error {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("room_id = ? AND id = ? AND is_deleted = ?", roomID, messageID, false).
		Update("is_deleted", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
