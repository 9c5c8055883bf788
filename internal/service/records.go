// records.go - CRUD записей реестра обработки персональных данных.
// Выборка: поиск по заголовку, фильтры по подразделениям и типам субъектов,
// сортировка по whitelist и пагинация.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartlt/criclabs-assignment/internal/domain/model"
	"github.com/smartlt/criclabs-assignment/internal/repository"
)

// Параметры выборки по умолчанию.
const (
	DefaultPage          = 1
	DefaultLimit         = 50
	MaxLimit             = 100
	DefaultSortField     = "createdAt"
	DefaultSortDirection = "desc"
)

// MaxPage - наибольший номер страницы, при котором смещение
// (page-1)*limit не переполняет int при любом допустимом limit.
const MaxPage = math.MaxInt/MaxLimit + 1

// Сообщения для клиента.
const (
	msgRecordNotFound  = "Data record not found"
	msgForbiddenUpdate = "You can only update your own records"
	msgForbiddenDelete = "You can only delete your own records"
	msgUserNotFound    = "User not found"
)

// recordOperationsTotal - успешные операции над записями.
var recordOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dm_records_operations_total",
		Help: "Общее количество успешных операций над записями.",
	},
	[]string{"operation"},
)

// CreateRecordInput - данные новой записи.
type CreateRecordInput struct {
	Title            string
	Description      *string
	Department       model.Department
	DataSubjectTypes []model.DataSubjectType
}

// Validate проверяет обязательные поля и значения перечислений.
func (in *CreateRecordInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errorf(ErrValidation, "title is required")
	}
	if in.Department == "" {
		return errorf(ErrValidation, "department is required")
	}
	if !in.Department.Valid() {
		return errorf(ErrValidation, "department must be one of: %s", joinDepartments())
	}
	return validateSubjectTypes(in.DataSubjectTypes)
}

// UpdateRecordInput - частичное обновление. nil = поле не меняется.
type UpdateRecordInput struct {
	Title            *string
	Description      *string
	Department       *model.Department
	DataSubjectTypes *[]model.DataSubjectType
}

// Validate проверяет переданные поля.
func (in *UpdateRecordInput) Validate() error {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return errorf(ErrValidation, "title must not be empty")
	}
	if in.Department != nil && !in.Department.Valid() {
		return errorf(ErrValidation, "department must be one of: %s", joinDepartments())
	}
	if in.DataSubjectTypes != nil {
		return validateSubjectTypes(*in.DataSubjectTypes)
	}
	return nil
}

// ListQuery - параметры выборки записей.
type ListQuery struct {
	Title            string
	Departments      []model.Department
	DataSubjectTypes []model.DataSubjectType
	SortField        string
	SortDirection    string
	Page             int
	Limit            int
}

// Validate проверяет перечисления и поля сортировки.
// Пустые значения допустимы - они заменяются значениями по умолчанию.
func (q *ListQuery) Validate() error {
	for _, d := range q.Departments {
		if !d.Valid() {
			return errorf(ErrValidation, "departments must contain only: %s", joinDepartments())
		}
	}
	if err := validateSubjectTypes(q.DataSubjectTypes); err != nil {
		return err
	}
	if q.SortField != "" && !repository.IsSortField(q.SortField) {
		return errorf(ErrValidation,
			"sortField must be one of: title, description, department, dataSubjectTypes, createdAt, updatedAt")
	}
	if q.SortDirection != "" && q.SortDirection != "asc" && q.SortDirection != "desc" {
		return errorf(ErrValidation, "sortDirection must be asc or desc")
	}
	if q.Page > MaxPage {
		return errorf(ErrValidation, "page must not exceed %d", MaxPage)
	}
	return nil
}

// normalize подставляет значения по умолчанию и ограничивает page/limit.
func (q *ListQuery) normalize() {
	if q.SortField == "" {
		q.SortField = DefaultSortField
	}
	if q.SortDirection == "" {
		q.SortDirection = DefaultSortDirection
	}
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	switch {
	case q.Limit < 1:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
}

// Pagination - метаданные страницы.
type Pagination struct {
	Page        int
	Limit       int
	Total       int
	TotalPages  int
	HasNextPage bool
	HasPrevPage bool
}

// NewPagination вычисляет метаданные страницы.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// ListResult - страница записей.
type ListResult struct {
	Records    []*model.DataRecord
	Pagination Pagination
}

// RecordService - сервис записей реестра.
type RecordService struct {
	records repository.RecordRepository
	users   *UserCache
	logger  *slog.Logger
}

// NewRecordService создаёт сервис записей.
// users - кэш профилей AuthService, может быть nil.
func NewRecordService(records repository.RecordRepository, users *UserCache, logger *slog.Logger) *RecordService {
	return &RecordService{
		records: records,
		users:   users,
		logger:  logger.With(slog.String("component", "record_service")),
	}
}

// Create сохраняет запись от имени callerID. Автор берётся только из callerID.
func (s *RecordService) Create(ctx context.Context, in CreateRecordInput, callerID string) (*model.DataRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	rec := &model.DataRecord{
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		Department:       in.Department,
		DataSubjectTypes: dedupSubjectTypes(in.DataSubjectTypes),
		CreatedBy:        model.CanonicalID(callerID),
	}
	if err := s.records.Create(ctx, rec); err != nil {
		// Пользователь удалён, но его профиль ещё жил в кэше
		if errors.Is(err, repository.ErrUnknownCreator) {
			if s.users != nil {
				s.users.Delete(rec.CreatedBy)
			}
			return nil, errorf(ErrUnauthorized, msgUserNotFound)
		}
		return nil, err
	}

	recordOperationsTotal.WithLabelValues("create").Inc()
	s.logger.Info("Запись создана",
		slog.String("record_id", rec.ID),
		slog.String("user_id", rec.CreatedBy),
	)
	return rec, nil
}

// List возвращает страницу записей по фильтрам.
func (s *RecordService) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q.normalize()

	records, total, err := s.records.List(ctx, repository.RecordListParams{
		Title:            q.Title,
		Departments:      q.Departments,
		DataSubjectTypes: q.DataSubjectTypes,
		SortField:        q.SortField,
		SortDirection:    q.SortDirection,
		Limit:            q.Limit,
		Offset:           (q.Page - 1) * q.Limit,
	})
	if err != nil {
		return nil, err
	}

	recordOperationsTotal.WithLabelValues("list").Inc()
	return &ListResult{
		Records:    records,
		Pagination: NewPagination(q.Page, q.Limit, total),
	}, nil
}

// Get возвращает запись по ID.
func (s *RecordService) Get(ctx context.Context, id string) (*model.DataRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorf(ErrNotFound, msgRecordNotFound)
		}
		return nil, err
	}
	recordOperationsTotal.WithLabelValues("get").Inc()
	return rec, nil
}

// Update применяет частичное обновление к записи автора.
func (s *RecordService) Update(ctx context.Context, id string, in UpdateRecordInput, callerID string) (*model.DataRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, id, callerID, msgForbiddenUpdate); err != nil {
		return nil, err
	}

	patch := repository.RecordPatch{
		Description: in.Description,
		Department:  in.Department,
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		patch.Title = &title
	}
	if in.DataSubjectTypes != nil {
		types := dedupSubjectTypes(*in.DataSubjectTypes)
		patch.DataSubjectTypes = &types
	}

	rec, err := s.records.UpdateOwned(ctx, id, model.CanonicalID(callerID), patch)
	if err != nil {
		// Запись удалена между проверкой и записью
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorf(ErrNotFound, msgRecordNotFound)
		}
		return nil, err
	}

	recordOperationsTotal.WithLabelValues("update").Inc()
	s.logger.Info("Запись обновлена",
		slog.String("record_id", rec.ID),
		slog.String("user_id", callerID),
	)
	return rec, nil
}

// Remove удаляет запись автора и возвращает удалённый снимок.
func (s *RecordService) Remove(ctx context.Context, id, callerID string) (*model.DataRecord, error) {
	if err := s.checkOwner(ctx, id, callerID, msgForbiddenDelete); err != nil {
		return nil, err
	}

	rec, err := s.records.DeleteOwned(ctx, id, model.CanonicalID(callerID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorf(ErrNotFound, msgRecordNotFound)
		}
		return nil, err
	}

	recordOperationsTotal.WithLabelValues("delete").Inc()
	s.logger.Info("Запись удалена",
		slog.String("record_id", rec.ID),
		slog.String("user_id", callerID),
	)
	return rec, nil
}

// checkOwner различает "нет записи" (404) и "чужая запись" (403).
func (s *RecordService) checkOwner(ctx context.Context, id, callerID, forbiddenMsg string) error {
	existing, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorf(ErrNotFound, msgRecordNotFound)
		}
		return err
	}
	if !existing.OwnedBy(callerID) {
		return &Error{Kind: ErrForbidden, Message: forbiddenMsg}
	}
	return nil
}

func validateSubjectTypes(types []model.DataSubjectType) error {
	for _, t := range types {
		if !t.Valid() {
			names := make([]string, 0, len(model.DataSubjectTypes))
			for _, v := range model.DataSubjectTypes {
				names = append(names, string(v))
			}
			return errorf(ErrValidation, "dataSubjectTypes must contain only: %s", strings.Join(names, ", "))
		}
	}
	return nil
}

// dedupSubjectTypes убирает повторы, сохраняя порядок. nil → пустой срез.
func dedupSubjectTypes(types []model.DataSubjectType) []model.DataSubjectType {
	out := make([]model.DataSubjectType, 0, len(types))
	seen := make(map[model.DataSubjectType]struct{}, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func joinDepartments() string {
	names := make([]string, 0, len(model.Departments))
	for _, d := range model.Departments {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}
