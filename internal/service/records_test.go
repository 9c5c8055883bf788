package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smartlt/criclabs-assignment/internal/domain/model"
	"github.com/smartlt/criclabs-assignment/internal/repository"
)

// --- Mock repository ---

// memRecordRepo - in-memory RecordRepository для unit-тестов.
// Сортировка не моделируется: List возвращает записи в порядке вставки.
type memRecordRepo struct {
	mu      sync.Mutex
	records []*model.DataRecord

	createFn func(ctx context.Context, rec *model.DataRecord) error
	listFn   func(ctx context.Context, params repository.RecordListParams) ([]*model.DataRecord, int, error)
	// beforeWriteFn вызывается перед UpdateOwned/DeleteOwned (имитация гонки)
	beforeWriteFn func()
}

func (m *memRecordRepo) Create(ctx context.Context, rec *model.DataRecord) error {
	if m.createFn != nil {
		return m.createFn(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = model.NewID()
	}
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	stored := *rec
	m.records = append(m.records, &stored)
	return nil
}

func (m *memRecordRepo) GetByID(_ context.Context, id string) (*model.DataRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		found := *m.records[i]
		return &found, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memRecordRepo) List(ctx context.Context, params repository.RecordListParams) ([]*model.DataRecord, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*model.DataRecord
	for _, r := range m.records {
		if params.Title != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(params.Title)) {
			continue
		}
		if len(params.Departments) > 0 && !slices.Contains(params.Departments, r.Department) {
			continue
		}
		if len(params.DataSubjectTypes) > 0 && !slices.ContainsFunc(r.DataSubjectTypes, func(t model.DataSubjectType) bool {
			return slices.Contains(params.DataSubjectTypes, t)
		}) {
			continue
		}
		matched = append(matched, r)
	}

	total := len(matched)
	start := min(params.Offset, total)
	end := min(start+params.Limit, total)
	return matched[start:end], total, nil
}

func (m *memRecordRepo) UpdateOwned(_ context.Context, id, ownerID string, patch repository.RecordPatch) (*model.DataRecord, error) {
	if m.beforeWriteFn != nil {
		m.beforeWriteFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 || m.records[i].CreatedBy != ownerID {
		return nil, repository.ErrNotFound
	}
	r := m.records[i]
	if patch.Title != nil {
		r.Title = *patch.Title
	}
	if patch.Description != nil {
		r.Description = patch.Description
	}
	if patch.Department != nil {
		r.Department = *patch.Department
	}
	if patch.DataSubjectTypes != nil {
		r.DataSubjectTypes = *patch.DataSubjectTypes
	}
	r.UpdatedAt = time.Now()
	updated := *r
	return &updated, nil
}

func (m *memRecordRepo) DeleteOwned(_ context.Context, id, ownerID string) (*model.DataRecord, error) {
	if m.beforeWriteFn != nil {
		m.beforeWriteFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 || m.records[i].CreatedBy != ownerID {
		return nil, repository.ErrNotFound
	}
	deleted := *m.records[i]
	m.records = slices.Delete(m.records, i, i+1)
	return &deleted, nil
}

func (m *memRecordRepo) index(id string) int {
	for i, r := range m.records {
		if r.ID == model.CanonicalID(id) {
			return i
		}
	}
	return -1
}

var (
	aliceID = "6f1f3c9a-8b4e-4d6f-9a8e-1c2b3d4e5f60"
	bobID   = "0a9b8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d"
)

func newTestRecordService(repo *memRecordRepo) *RecordService {
	return NewRecordService(repo, nil, slog.Default())
}

func createTestRecord(t *testing.T, svc *RecordService, title string, callerID string) *model.DataRecord {
	t.Helper()
	rec, err := svc.Create(context.Background(), CreateRecordInput{
		Title:            title,
		Department:       model.DepartmentHumanResources,
		DataSubjectTypes: []model.DataSubjectType{model.DataSubjectEmployees},
	}, callerID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}

// --- Тесты RecordService ---

func TestRecordService_Create(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})

	desc := "Staff payroll"
	rec, err := svc.Create(context.Background(), CreateRecordInput{
		Title:       "  Payroll  ",
		Description: &desc,
		Department:  model.DepartmentITIS,
		DataSubjectTypes: []model.DataSubjectType{
			model.DataSubjectStudents, model.DataSubjectFacultyStaff, model.DataSubjectStudents,
		},
	}, aliceID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rec.Title != "Payroll" {
		t.Errorf("Title = %q, ожидался Payroll", rec.Title)
	}
	if rec.CreatedBy != aliceID {
		t.Errorf("CreatedBy = %q, ожидался %q", rec.CreatedBy, aliceID)
	}
	want := []model.DataSubjectType{model.DataSubjectStudents, model.DataSubjectFacultyStaff}
	if !slices.Equal(rec.DataSubjectTypes, want) {
		t.Errorf("DataSubjectTypes = %v, ожидался %v", rec.DataSubjectTypes, want)
	}
}

func TestRecordService_Create_EmptySubjectTypes(t *testing.T) {
	repo := &memRecordRepo{}
	svc := newTestRecordService(repo)

	rec, err := svc.Create(context.Background(), CreateRecordInput{
		Title: "No subjects", Department: model.DepartmentMarketing,
	}, aliceID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DataSubjectTypes == nil || len(got.DataSubjectTypes) != 0 {
		t.Errorf("DataSubjectTypes = %#v, ожидался пустой срез", got.DataSubjectTypes)
	}
}

func TestRecordService_Create_Validation(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})

	tests := []struct {
		name  string
		input CreateRecordInput
	}{
		{"пустой заголовок", CreateRecordInput{Title: " ", Department: model.DepartmentITIS}},
		{"нет подразделения", CreateRecordInput{Title: "T"}},
		{"неизвестное подразделение", CreateRecordInput{Title: "T", Department: "Finance"}},
		{"неизвестный тип субъекта", CreateRecordInput{
			Title: "T", Department: model.DepartmentITIS,
			DataSubjectTypes: []model.DataSubjectType{"Alumni"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.input, aliceID); !errors.Is(err, ErrValidation) {
				t.Errorf("ошибка = %v, ожидался ErrValidation", err)
			}
		})
	}
}

// TestRecordService_SubjectTypesRoundTrip проверяет, что множество типов
// субъектов сохраняется и читается без изменений.
func TestRecordService_SubjectTypesRoundTrip(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})
	ctx := context.Background()

	all := []model.DataSubjectType{model.DataSubjectEmployees, model.DataSubjectFacultyStaff, model.DataSubjectStudents}
	rec, err := svc.Create(ctx, CreateRecordInput{Title: "All", Department: model.DepartmentAdmission, DataSubjectTypes: all}, aliceID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !slices.Equal(got.DataSubjectTypes, all) {
		t.Errorf("DataSubjectTypes = %v, ожидался %v", got.DataSubjectTypes, all)
	}
}

func TestRecordService_Get_NotFound(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})

	_, err := svc.Get(context.Background(), model.NewID())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ошибка = %v, ожидался ErrNotFound", err)
	}
	if err.Error() != "Data record not found" {
		t.Errorf("сообщение = %q", err.Error())
	}
}

func TestRecordService_Update(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})
	ctx := context.Background()
	rec := createTestRecord(t, svc, "Original", aliceID)

	title := "Renamed"
	updated, err := svc.Update(ctx, rec.ID, UpdateRecordInput{Title: &title}, aliceID)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("Title = %q", updated.Title)
	}
	// Непереданные поля не меняются
	if updated.Department != model.DepartmentHumanResources || len(updated.DataSubjectTypes) != 1 {
		t.Errorf("Update изменил непереданные поля: %+v", updated)
	}
}

// TestRecordService_Update_Forbidden проверяет, что чужая запись не меняется.
func TestRecordService_Update_Forbidden(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})
	ctx := context.Background()
	rec := createTestRecord(t, svc, "Alice's", aliceID)

	title := "Bob was here"
	_, err := svc.Update(ctx, rec.ID, UpdateRecordInput{Title: &title}, bobID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("ошибка = %v, ожидался ErrForbidden", err)
	}
	if err.Error() != "You can only update your own records" {
		t.Errorf("сообщение = %q", err.Error())
	}

	got, _ := svc.Get(ctx, rec.ID)
	if got.Title != "Alice's" {
		t.Errorf("Title = %q, запись не должна меняться", got.Title)
	}
}

func TestRecordService_Update_NotFoundBeforeForbidden(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})

	title := "x"
	_, err := svc.Update(context.Background(), model.NewID(), UpdateRecordInput{Title: &title}, bobID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ошибка = %v, ожидался ErrNotFound", err)
	}
}

func TestRecordService_Update_Validation(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})
	rec := createTestRecord(t, svc, "T", aliceID)

	empty := ""
	bad := model.Department("Finance")
	for name, in := range map[string]UpdateRecordInput{
		"пустой заголовок":          {Title: &empty},
		"неизвестное подразделение": {Department: &bad},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Update(context.Background(), rec.ID, in, aliceID); !errors.Is(err, ErrValidation) {
				t.Errorf("ошибка = %v, ожидался ErrValidation", err)
			}
		})
	}
}

// TestRecordService_Update_RecordVanished проверяет удаление записи между
// проверкой владельца и записью.
func TestRecordService_Update_RecordVanished(t *testing.T) {
	repo := &memRecordRepo{}
	svc := newTestRecordService(repo)
	rec := createTestRecord(t, svc, "Short-lived", aliceID)

	repo.beforeWriteFn = func() {
		repo.mu.Lock()
		repo.records = nil
		repo.mu.Unlock()
	}

	title := "late"
	_, err := svc.Update(context.Background(), rec.ID, UpdateRecordInput{Title: &title}, aliceID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ошибка = %v, ожидался ErrNotFound", err)
	}
}

func TestRecordService_Remove(t *testing.T) {
	repo := &memRecordRepo{}
	svc := newTestRecordService(repo)
	ctx := context.Background()
	rec := createTestRecord(t, svc, "To delete", aliceID)

	_, err := svc.Remove(ctx, rec.ID, bobID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("ошибка = %v, ожидался ErrForbidden", err)
	}
	if err.Error() != "You can only delete your own records" {
		t.Errorf("сообщение = %q", err.Error())
	}

	deleted, err := svc.Remove(ctx, rec.ID, aliceID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if deleted.Title != "To delete" {
		t.Errorf("Remove вернул %+v", deleted)
	}

	if _, err := svc.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get после Remove: %v, ожидался ErrNotFound", err)
	}
	if _, err := svc.Remove(ctx, rec.ID, aliceID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Remove: %v, ожидался ErrNotFound", err)
	}
}

// TestRecordService_OwnerIDCaseInsensitive проверяет сравнение UUID в каноническом виде.
func TestRecordService_OwnerIDCaseInsensitive(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})
	rec := createTestRecord(t, svc, "Mine", strings.ToUpper(aliceID))

	if _, err := svc.Remove(context.Background(), rec.ID, aliceID); err != nil {
		t.Errorf("Remove: %v", err)
	}
}

func TestRecordService_List_Pagination(t *testing.T) {
	const total = 120

	tests := []struct {
		page, wantCount int
		wantNext        bool
		wantPrev        bool
	}{
		{1, 50, true, false},
		{2, 50, true, true},
		{3, 20, false, true},
		{4, 0, false, true},
	}

	repo := &memRecordRepo{}
	svc := newTestRecordService(repo)
	for range total {
		createTestRecord(t, svc, "Record", aliceID)
	}

	for _, tt := range tests {
		result, err := svc.List(context.Background(), ListQuery{Page: tt.page, Limit: 50})
		if err != nil {
			t.Fatalf("List(page=%d): %v", tt.page, err)
		}
		p := result.Pagination
		if len(result.Records) != tt.wantCount {
			t.Errorf("page %d: записей = %d, ожидалось %d", tt.page, len(result.Records), tt.wantCount)
		}
		if p.Total != total || p.TotalPages != 3 {
			t.Errorf("page %d: total=%d totalPages=%d", tt.page, p.Total, p.TotalPages)
		}
		if p.HasNextPage != tt.wantNext || p.HasPrevPage != tt.wantPrev {
			t.Errorf("page %d: hasNext=%v hasPrev=%v", tt.page, p.HasNextPage, p.HasPrevPage)
		}
	}
}

func TestRecordService_List_Defaults(t *testing.T) {
	var got repository.RecordListParams
	repo := &memRecordRepo{
		listFn: func(_ context.Context, params repository.RecordListParams) ([]*model.DataRecord, int, error) {
			got = params
			return nil, 0, nil
		},
	}
	svc := newTestRecordService(repo)

	result, err := svc.List(context.Background(), ListQuery{Page: 0, Limit: 500})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if got.SortField != "createdAt" || got.SortDirection != "desc" {
		t.Errorf("сортировка = %s/%s, ожидалась createdAt/desc", got.SortField, got.SortDirection)
	}
	if got.Limit != MaxLimit || got.Offset != 0 {
		t.Errorf("limit=%d offset=%d, ожидалось %d/0", got.Limit, got.Offset, MaxLimit)
	}
	if result.Pagination.Page != 1 || result.Pagination.TotalPages != 0 || result.Pagination.HasNextPage {
		t.Errorf("Pagination = %+v", result.Pagination)
	}
}

func TestRecordService_List_Filters(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})
	ctx := context.Background()

	for _, in := range []CreateRecordInput{
		{Title: "Student records", Department: model.DepartmentAdmission, DataSubjectTypes: []model.DataSubjectType{model.DataSubjectStudents}},
		{Title: "Staff records", Department: model.DepartmentHumanResources, DataSubjectTypes: []model.DataSubjectType{model.DataSubjectEmployees}},
		{Title: "Campaign list", Department: model.DepartmentMarketing, DataSubjectTypes: []model.DataSubjectType{model.DataSubjectStudents}},
	} {
		if _, err := svc.Create(ctx, in, aliceID); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	result, err := svc.List(ctx, ListQuery{
		Title:            "records",
		DataSubjectTypes: []model.DataSubjectType{model.DataSubjectStudents},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Records) != 1 || result.Records[0].Title != "Student records" {
		t.Errorf("Records = %v, ожидалась одна запись Student records", result.Records)
	}
}

func TestRecordService_List_Validation(t *testing.T) {
	svc := newTestRecordService(&memRecordRepo{})

	for name, q := range map[string]ListQuery{
		"неизвестное поле сортировки": {SortField: "created_by"},
		"неизвестное направление":     {SortDirection: "up"},
		"неизвестное подразделение":   {Departments: []model.Department{"Finance"}},
		"неизвестный тип субъекта":    {DataSubjectTypes: []model.DataSubjectType{"Alumni"}},
		"page вне диапазона":          {Page: math.MaxInt, Limit: DefaultLimit},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.List(context.Background(), q); !errors.Is(err, ErrValidation) {
				t.Errorf("ошибка = %v, ожидался ErrValidation", err)
			}
		})
	}
}

// TestRecordService_List_MaxPage проверяет, что смещение последней
// допустимой страницы не переполняется.
func TestRecordService_List_MaxPage(t *testing.T) {
	var got repository.RecordListParams
	repo := &memRecordRepo{
		listFn: func(_ context.Context, params repository.RecordListParams) ([]*model.DataRecord, int, error) {
			got = params
			return nil, 0, nil
		},
	}
	svc := newTestRecordService(repo)

	if _, err := svc.List(context.Background(), ListQuery{Page: MaxPage, Limit: MaxLimit}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if got.Offset < 0 || got.Offset != (MaxPage-1)*MaxLimit {
		t.Errorf("Offset = %d, ожидалось %d", got.Offset, (MaxPage-1)*MaxLimit)
	}

	_, err := svc.List(context.Background(), ListQuery{Page: MaxPage + 1, Limit: MaxLimit})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ошибка = %v, ожидался ErrValidation", err)
	}
}

// TestRecordService_Create_UnknownCreator проверяет запись от имени
// удалённого пользователя: 401 и сброс его профиля из кэша.
func TestRecordService_Create_UnknownCreator(t *testing.T) {
	repo := &memRecordRepo{
		createFn: func(_ context.Context, rec *model.DataRecord) error {
			return fmt.Errorf("%w: %s", repository.ErrUnknownCreator, rec.CreatedBy)
		},
	}
	cache := NewUserCache(10, time.Minute)
	cache.Set(aliceID, &model.PublicUser{ID: aliceID})
	svc := NewRecordService(repo, cache, slog.Default())

	_, err := svc.Create(context.Background(), CreateRecordInput{
		Title: "Orphan", Department: model.DepartmentITIS,
	}, aliceID)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ошибка = %v, ожидался ErrUnauthorized", err)
	}
	if err.Error() != "User not found" {
		t.Errorf("сообщение = %q", err.Error())
	}
	if _, ok := cache.Get(aliceID); ok {
		t.Error("профиль удалённого пользователя должен быть удалён из кэша")
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		page, limit, total int
		want               Pagination
	}{
		{1, 10, 0, Pagination{Page: 1, Limit: 10, Total: 0, TotalPages: 0}},
		{1, 10, 10, Pagination{Page: 1, Limit: 10, Total: 10, TotalPages: 1}},
		{1, 10, 11, Pagination{Page: 1, Limit: 10, Total: 11, TotalPages: 2, HasNextPage: true}},
		{2, 10, 11, Pagination{Page: 2, Limit: 10, Total: 11, TotalPages: 2, HasPrevPage: true}},
	}

	for _, tt := range tests {
		if got := NewPagination(tt.page, tt.limit, tt.total); got != tt.want {
			t.Errorf("NewPagination(%d, %d, %d) = %+v, ожидалось %+v", tt.page, tt.limit, tt.total, got, tt.want)
		}
	}
}
