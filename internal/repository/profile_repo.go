package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/qs3c/betfaro_server/internal/model"
)

// likeEscaper 转义 LIKE 通配符，配合 ESCAPE '!'
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Search 按邮箱或名称子串（忽略大小写）搜索，最新注册在前
func (r *ProfileRepository) Search(ctx context.Context, term string, limit int) ([]*model.Profile, error) {
	var profiles []*model.Profile

	query := r.db.WithContext(ctx).Model(&model.Profile{})
	if term = strings.TrimSpace(term); term != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		query = query.Where("LOWER(email) LIKE ? ESCAPE '!' OR LOWER(name) LIKE ? ESCAPE '!'", pattern, pattern)
	}

	err := query.Order("created_at DESC").Limit(limit).Find(&profiles).Error
	return profiles, err
}
