package implementation

import (
	"context"

	"docchat-be/internal/entity"
	"docchat-be/internal/mapper"
	"docchat-be/internal/model"
	"docchat-be/internal/repository/contract"
	"docchat-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ChatCitationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatCitationRepository(db *gorm.DB) contract.ChatCitationRepository {
	return &ChatCitationRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatCitationRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatCitationRepositoryImpl) CreateBatch(ctx context.Context, citations []*entity.ChatCitation) error {
	if len(citations) == 0 {
		return nil
	}
	models := make([]*model.ChatCitation, len(citations))
	for i, c := range citations {
		models[i] = r.mapper.CitationToModel(c)
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*citations[i] = *r.mapper.CitationToEntity(m)
	}
	return nil
}

func (r *ChatCitationRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatCitation, error) {
	var models []*model.ChatCitation
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ChatCitation, len(models))
	for i, m := range models {
		entities[i] = r.mapper.CitationToEntity(m)
	}
	return entities, nil
}
