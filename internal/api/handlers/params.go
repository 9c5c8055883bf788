// params.go - разбор query-параметров выборки записей.
package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/smartlt/criclabs-assignment/internal/domain/model"
	"github.com/smartlt/criclabs-assignment/internal/repository"
	"github.com/smartlt/criclabs-assignment/internal/service"
)

// parseListQuery разбирает параметры GET /data-records.
// Множественные фильтры принимаются как departments=A&departments=B
// и как departments[]=A. Значения через запятую не разделяются.
func parseListQuery(values url.Values) (service.ListQuery, error) {
	q := service.ListQuery{
		Title:         values.Get("title"),
		SortField:     values.Get("sortField"),
		SortDirection: values.Get("sortDirection"),
		Page:          service.DefaultPage,
		Limit:         service.DefaultLimit,
	}

	for _, raw := range multiValues(values, "departments") {
		d, err := model.ParseDepartment(raw)
		if err != nil {
			return q, fmt.Errorf("departments: %q is not a valid department", raw)
		}
		q.Departments = appendUnique(q.Departments, d)
	}

	for _, raw := range multiValues(values, "dataSubjectTypes") {
		t, err := model.ParseDataSubjectType(raw)
		if err != nil {
			return q, fmt.Errorf("dataSubjectTypes: %q is not a valid data subject type", raw)
		}
		q.DataSubjectTypes = appendUnique(q.DataSubjectTypes, t)
	}

	if q.SortField != "" && !repository.IsSortField(q.SortField) {
		return q, fmt.Errorf("sortField: %q is not a sortable field", q.SortField)
	}
	if q.SortDirection != "" && q.SortDirection != "asc" && q.SortDirection != "desc" {
		return q, errors.New("sortDirection must be asc or desc")
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 || page > service.MaxPage {
			return q, fmt.Errorf("page must be an integer between 1 and %d", service.MaxPage)
		}
		q.Page = page
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > service.MaxLimit {
			return q, fmt.Errorf("limit must be an integer between 1 and %d", service.MaxLimit)
		}
		q.Limit = limit
	}

	return q, nil
}

// multiValues собирает непустые значения параметра key и key[].
func multiValues(values url.Values, key string) []string {
	var out []string
	for _, k := range []string{key, key + "[]"} {
		for _, v := range values[k] {
			if v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func appendUnique[T comparable](s []T, v T) []T {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}
