package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gorm.io/gorm"
)

// GormProvider reads policy packs from a relational database.
type GormProvider struct {
	DB *gorm.DB
}

var _ Provider = (*GormProvider)(nil)

func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{DB: db}
}

func (p *GormProvider) ActivePack(ctx context.Context) (*PolicyPack, error) {
	var pack PolicyPack
	err := p.DB.WithContext(ctx).
		Preload("Rules").Preload("BannedWords").Preload("BlockedURLs").
		Where("active = ?", true).First(&pack).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActivePolicy
	}
	if err != nil {
		return nil, fmt.Errorf("loading active policy pack: %w", err)
	}
	return &pack, nil
}

func (p *GormProvider) Rules(ctx context.Context, packID string) ([]ModerationRule, error) {
	var out []ModerationRule
	if err := p.DB.WithContext(ctx).Where("pack_id = ?", packID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("loading moderation rules: %w", err)
	}
	return out, nil
}

func (p *GormProvider) BannedWords(ctx context.Context, packID string) ([]BannedWord, error) {
	var out []BannedWord
	if err := p.DB.WithContext(ctx).Where("pack_id = ?", packID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("loading banned words: %w", err)
	}
	return out, nil
}

func (p *GormProvider) BlockedURLs(ctx context.Context, packID string) ([]BlockedURL, error) {
	var out []BlockedURL
	if err := p.DB.WithContext(ctx).Where("pack_id = ?", packID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("loading blocked URLs: %w", err)
	}
	return out, nil
}

// StaticProvider serves a single fixed pack. Used by tests and by file-based
// deployments with no database.
type StaticProvider struct {
	Pack *PolicyPack
}

var _ Provider = (*StaticProvider)(nil)

func NewStaticProvider(pack *PolicyPack) *StaticProvider {
	return &StaticProvider{Pack: pack}
}

func (p *StaticProvider) ActivePack(ctx context.Context) (*PolicyPack, error) {
	if p.Pack == nil || !p.Pack.Active {
		return nil, ErrNoActivePolicy
	}
	return p.Pack, nil
}

func (p *StaticProvider) Rules(ctx context.Context, packID string) ([]ModerationRule, error) {
	if p.Pack == nil || p.Pack.ID != packID {
		return nil, nil
	}
	return p.Pack.Rules, nil
}

func (p *StaticProvider) BannedWords(ctx context.Context, packID string) ([]BannedWord, error) {
	if p.Pack == nil || p.Pack.ID != packID {
		return nil, nil
	}
	return p.Pack.BannedWords, nil
}

func (p *StaticProvider) BlockedURLs(ctx context.Context, packID string) ([]BlockedURL, error) {
	if p.Pack == nil || p.Pack.ID != packID {
		return nil, nil
	}
	return p.Pack.BlockedURLs, nil
}

// LoadPackFileJSON reads a policy pack from a JSON file and validates it.
func LoadPackFileJSON(p string) (*PolicyPack, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var pack PolicyPack
	if err := json.Unmarshal(raw, &pack); err != nil {
		return nil, fmt.Errorf("parsing policy pack JSON: %w", err)
	}
	if err := pack.Validate(); err != nil {
		return nil, err
	}
	return &pack, nil
}
