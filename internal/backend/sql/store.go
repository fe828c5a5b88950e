package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tempmail/webclient/internal/backend"
	"tempmail/webclient/internal/domain"
)

// Store 基于 SQL 数据库的后端数据访问实现（支持 MySQL 5.7+ 和 PostgreSQL）。
//
// 这里只做薄查询：按等值条件过滤、排序、按 ID 更新和删除，
// 业务规则（配额、唯一性、行级权限）全部由后端数据库约束承担。
// 推送订阅不在本包，见 redis 与 postgres 子包。
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string // "mysql" or "postgres"
}

// NewStore 创建 SQL 后端存储。
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var gormDB *gorm.DB
	switch driverName {
	case "mysql":
		gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: db}), gormConfig)
	case "postgres":
		gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: db}), gormConfig)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移客户端依赖的四张表和用户表。
func (s *Store) migrate() error {
	return s.gormDB.AutoMigrate(
		&domain.Domain{},
		&domain.Message{},
		&domain.CustomAddress{},
		&domain.Filter{},
		&domain.User{},
	)
}

// ListActiveDomains 返回全部启用状态的域名。
func (s *Store) ListActiveDomains(ctx context.Context) ([]domain.Domain, error) {
	var out []domain.Domain
	err := s.gormDB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("domain asc").
		Find(&out).Error
	if err != nil {
		return nil, classifyError(err)
	}
	return out, nil
}

// SaveDomain 保存域名记录。
func (s *Store) SaveDomain(ctx context.Context, d *domain.Domain) error {
	return classifyError(s.gormDB.WithContext(ctx).Save(d).Error)
}

// ListMessages 返回指定地址的全部邮件，按 received_at 降序。
func (s *Store) ListMessages(ctx context.Context, address string) ([]domain.Message, error) {
	var out []domain.Message
	err := s.gormDB.WithContext(ctx).
		Where("temp_email = ?", strings.ToLower(address)).
		Order("received_at desc").
		Find(&out).Error
	if err != nil {
		return nil, classifyError(err)
	}
	return out, nil
}

// SaveMessage 插入邮件记录。
func (s *Store) SaveMessage(ctx context.Context, message *domain.Message) error {
	message.TempEmail = strings.ToLower(message.TempEmail)
	if message.ReceivedAt.IsZero() {
		message.ReceivedAt = time.Now().UTC()
	}
	return classifyError(s.gormDB.WithContext(ctx).Create(message).Error)
}

// MarkMessageRead 标记邮件为已读。
func (s *Store) MarkMessageRead(ctx context.Context, address, messageID string) error {
	return s.updateMessageFlag(ctx, address, messageID, "is_read")
}

// MarkMessageExpired 标记邮件为已过期。
func (s *Store) MarkMessageExpired(ctx context.Context, address, messageID string) error {
	return s.updateMessageFlag(ctx, address, messageID, "is_expired")
}

func (s *Store) updateMessageFlag(ctx context.Context, address, messageID, column string) error {
	res := s.gormDB.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND temp_email = ?", messageID, strings.ToLower(address)).
		Update(column, true)
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return backend.ErrMessageNotFound
	}
	return nil
}

// InsertCustomAddress 登记自定义地址。
func (s *Store) InsertCustomAddress(ctx context.Context, addr *domain.CustomAddress) error {
	addr.Address = strings.ToLower(addr.Address)
	if addr.CreatedAt.IsZero() {
		addr.CreatedAt = time.Now().UTC()
	}
	return classifyError(s.gormDB.WithContext(ctx).Create(addr).Error)
}

// ListFilters 返回全部过滤规则，按创建时间降序。
func (s *Store) ListFilters(ctx context.Context) ([]domain.Filter, error) {
	var out []domain.Filter
	err := s.gormDB.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, classifyError(err)
	}
	return out, nil
}

// SaveFilter 保存过滤规则。
func (s *Store) SaveFilter(ctx context.Context, filter *domain.Filter) error {
	return classifyError(s.gormDB.WithContext(ctx).Save(filter).Error)
}

// UpdateFilterActive 更新过滤规则的启用状态。
func (s *Store) UpdateFilterActive(ctx context.Context, id string, active bool) error {
	res := s.gormDB.WithContext(ctx).
		Model(&domain.Filter{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return backend.ErrFilterNotFound
	}
	return nil
}

// DeleteFilter 删除过滤规则。
func (s *Store) DeleteFilter(ctx context.Context, id string) error {
	res := s.gormDB.WithContext(ctx).Delete(&domain.Filter{}, "id = ?", id)
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return backend.ErrFilterNotFound
	}
	return nil
}

// CreateUser 创建用户。
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	err := s.gormDB.WithContext(ctx).Create(user).Error
	if err != nil && isUniqueViolation(err) {
		return backend.ErrEmailExists
	}
	return classifyError(err)
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := s.gormDB.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backend.ErrUserNotFound
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return &user, nil
}

// GetUserByEmail 根据注册邮箱获取用户。
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := s.gormDB.WithContext(ctx).First(&user, "email = ?", strings.ToLower(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backend.ErrUserNotFound
	}
	if err != nil {
		return nil, classifyError(err)
	}
	return &user, nil
}

// UpdateLastLogin 更新最后登录时间。
func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	return classifyError(s.gormDB.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("last_login_at", now).Error)
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态。
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
