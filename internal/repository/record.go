package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/smartlt/criclabs-assignment/internal/domain/model"
)

// recordColumns - столбцы записи вместе с проекцией автора.
// Ожидает псевдонимы r (data_records) и u (users).
const recordColumns = `r.id, r.title, r.description, r.department, r.data_subject_types,
	r.created_by, r.created_at, r.updated_at, u.name, u.email`

// Сортировка по умолчанию.
const (
	defaultSortColumn    = "r.created_at"
	defaultSortDirection = "DESC"
)

// sortColumns - whitelist полей сортировки API → столбец.
var sortColumns = map[string]string{
	"title":            "r.title",
	"description":      "r.description",
	"department":       "r.department",
	"dataSubjectTypes": "r.data_subject_types",
	"createdAt":        "r.created_at",
	"updatedAt":        "r.updated_at",
}

// IsSortField проверяет, что поле входит в whitelist сортировки.
func IsSortField(field string) bool {
	_, ok := sortColumns[field]
	return ok
}

// RecordListParams - параметры выборки записей.
// Пустые значения фильтров = фильтр не применяется.
type RecordListParams struct {
	// Title - подстрока заголовка (без учёта регистра)
	Title string
	// Departments - запись должна принадлежать одному из подразделений
	Departments []model.Department
	// DataSubjectTypes - запись должна содержать хотя бы один из типов
	DataSubjectTypes []model.DataSubjectType
	// SortField - поле сортировки в терминах API (title, createdAt, ...)
	SortField string
	// SortDirection - asc или desc
	SortDirection string
	// Limit - размер страницы
	Limit int
	// Offset - смещение
	Offset int
}

// RecordPatch - частичное обновление записи. nil = поле не меняется.
type RecordPatch struct {
	Title            *string
	Description      *string
	Department       *model.Department
	DataSubjectTypes *[]model.DataSubjectType
}

// RecordRepository - доступ к таблице data_records.
type RecordRepository interface {
	// Create сохраняет запись и заполняет ID, временные метки и автора.
	// ErrUnknownCreator - пользователя CreatedBy нет в БД.
	Create(ctx context.Context, rec *model.DataRecord) error
	// GetByID возвращает запись с проекцией автора.
	GetByID(ctx context.Context, id string) (*model.DataRecord, error)
	// List возвращает страницу записей и общее количество по тем же фильтрам.
	List(ctx context.Context, params RecordListParams) ([]*model.DataRecord, int, error)
	// UpdateOwned применяет patch, только если запись принадлежит ownerID.
	// ErrNotFound - записи нет или она принадлежит другому пользователю.
	UpdateOwned(ctx context.Context, id, ownerID string, patch RecordPatch) (*model.DataRecord, error)
	// DeleteOwned удаляет запись владельца и возвращает удалённый снимок.
	DeleteOwned(ctx context.Context, id, ownerID string) (*model.DataRecord, error)
}

// recordRepo - реализация RecordRepository через pgx.
type recordRepo struct {
	db DBTX
}

// NewRecordRepository создаёт репозиторий записей.
func NewRecordRepository(db DBTX) RecordRepository {
	return &recordRepo{db: db}
}

func (r *recordRepo) Create(ctx context.Context, rec *model.DataRecord) error {
	if rec.ID == "" {
		rec.ID = model.NewID()
	}

	query := fmt.Sprintf(`
		WITH r AS (
			INSERT INTO data_records (id, title, description, department, data_subject_types, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING *
		)
		SELECT %s FROM r LEFT JOIN users u ON u.id = r.created_by`, recordColumns)

	row := r.db.QueryRow(ctx, query,
		rec.ID, rec.Title, rec.Description, string(rec.Department),
		subjectTypesToStrings(rec.DataSubjectTypes), rec.CreatedBy,
	)
	saved, err := scanRecord(row)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запись с таким ID уже существует", ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", ErrUnknownCreator, rec.CreatedBy)
		}
		return fmt.Errorf("ошибка создания записи: %w", err)
	}
	*rec = *saved
	return nil
}

func (r *recordRepo) GetByID(ctx context.Context, id string) (*model.DataRecord, error) {
	if !model.IsValidID(id) {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM data_records r
		LEFT JOIN users u ON u.id = r.created_by
		WHERE r.id = $1`, recordColumns)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}

// List выполняет выборку с фильтрами, сортировкой и пагинацией.
// Возвращает (страница, общее количество, ошибка).
func (r *recordRepo) List(ctx context.Context, params RecordListParams) ([]*model.DataRecord, int, error) {
	where, args := buildRecordWhere(params, 1)
	argNum := len(args) + 1
	orderBy := buildOrderBy(params.SortField, params.SortDirection)

	dataQuery := fmt.Sprintf(`
		SELECT %s
		FROM data_records r
		LEFT JOIN users u ON u.id = r.created_by
		%s %s LIMIT $%d OFFSET $%d`,
		recordColumns, where, orderBy, argNum, argNum+1,
	)
	dataArgs := append(append([]any{}, args...), params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, dataQuery, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки записей: %w", err)
	}
	defer rows.Close()

	result := make([]*model.DataRecord, 0, params.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	// Общее количество - те же фильтры, без LIMIT/OFFSET
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM data_records r %s`, where)

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}

	return result, total, nil
}

func (r *recordRepo) UpdateOwned(ctx context.Context, id, ownerID string, patch RecordPatch) (*model.DataRecord, error) {
	if !model.IsValidID(id) || !model.IsValidID(ownerID) {
		return nil, ErrNotFound
	}

	sets, args := buildRecordSet(patch, 3)
	query := fmt.Sprintf(`
		WITH r AS (
			UPDATE data_records
			SET %s
			WHERE id = $1 AND created_by = $2
			RETURNING *
		)
		SELECT %s FROM r LEFT JOIN users u ON u.id = r.created_by`,
		sets, recordColumns,
	)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, append([]any{id, ownerID}, args...)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления записи: %w", err)
	}
	return rec, nil
}

func (r *recordRepo) DeleteOwned(ctx context.Context, id, ownerID string) (*model.DataRecord, error) {
	if !model.IsValidID(id) || !model.IsValidID(ownerID) {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`
		WITH r AS (
			DELETE FROM data_records
			WHERE id = $1 AND created_by = $2
			RETURNING *
		)
		SELECT %s FROM r LEFT JOIN users u ON u.id = r.created_by`, recordColumns)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка удаления записи: %w", err)
	}
	return rec, nil
}

// scanRecord читает строку в формате recordColumns.
func scanRecord(row pgx.Row) (*model.DataRecord, error) {
	var (
		rec          model.DataRecord
		department   string
		subjectTypes []string
		creatorName  *string
		creatorEmail *string
	)
	if err := row.Scan(
		&rec.ID, &rec.Title, &rec.Description, &department, &subjectTypes,
		&rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt, &creatorName, &creatorEmail,
	); err != nil {
		return nil, err
	}

	rec.Department = model.Department(department)
	rec.DataSubjectTypes = make([]model.DataSubjectType, 0, len(subjectTypes))
	for _, s := range subjectTypes {
		rec.DataSubjectTypes = append(rec.DataSubjectTypes, model.DataSubjectType(s))
	}
	if creatorName != nil && creatorEmail != nil {
		rec.Creator = &model.Creator{ID: rec.CreatedBy, Name: *creatorName, Email: *creatorEmail}
	}
	return &rec, nil
}

// buildRecordWhere строит WHERE-условие и аргументы для выборки записей.
// startArg - номер первого $-параметра.
func buildRecordWhere(params RecordListParams, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	// Подстрока заголовка, метасимволы LIKE экранируются
	if params.Title != "" {
		conditions = append(conditions, fmt.Sprintf("r.title ILIKE $%d", argNum))
		args = append(args, "%"+escapeLike(params.Title)+"%")
		argNum++
	}

	// Подразделение - одно из перечисленных
	if len(params.Departments) > 0 {
		departments := make([]string, 0, len(params.Departments))
		for _, d := range params.Departments {
			departments = append(departments, string(d))
		}
		conditions = append(conditions, fmt.Sprintf("r.department = ANY($%d::text[])", argNum))
		args = append(args, departments)
		argNum++
	}

	// Типы субъектов - пересечение множеств (оператор &&)
	if len(params.DataSubjectTypes) > 0 {
		conditions = append(conditions, fmt.Sprintf("r.data_subject_types && $%d::text[]", argNum))
		args = append(args, subjectTypesToStrings(params.DataSubjectTypes))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// buildOrderBy строит ORDER BY с безопасным whitelist полей.
// Вторичный ключ r.id делает порядок страниц детерминированным.
func buildOrderBy(sortField, sortDirection string) string {
	column, ok := sortColumns[sortField]
	if !ok {
		column = defaultSortColumn
	}

	direction := defaultSortDirection
	if strings.EqualFold(sortDirection, "asc") {
		direction = "ASC"
	}

	return fmt.Sprintf("ORDER BY %s %s, r.id %s", column, direction, direction)
}

// buildRecordSet строит SET-часть UPDATE для частичного обновления.
// updated_at присутствует всегда, поэтому SET никогда не бывает пустым.
func buildRecordSet(patch RecordPatch, startArg int) (setClause string, args []any) {
	sets := []string{"updated_at = now()"}
	argNum := startArg

	if patch.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argNum))
		args = append(args, *patch.Title)
		argNum++
	}
	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", argNum))
		args = append(args, *patch.Description)
		argNum++
	}
	if patch.Department != nil {
		sets = append(sets, fmt.Sprintf("department = $%d", argNum))
		args = append(args, string(*patch.Department))
		argNum++
	}
	if patch.DataSubjectTypes != nil {
		sets = append(sets, fmt.Sprintf("data_subject_types = $%d::text[]", argNum))
		args = append(args, subjectTypesToStrings(*patch.DataSubjectTypes))
	}

	return strings.Join(sets, ", "), args
}

// escapeLike экранирует метасимволы LIKE (\, %, _).
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func subjectTypesToStrings(types []model.DataSubjectType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}
