// dto.go - JSON-представления запросов и ответов API.
package handlers

import (
	"time"

	"github.com/smartlt/criclabs-assignment/internal/domain/model"
	"github.com/smartlt/criclabs-assignment/internal/service"
)

// --- Auth ---

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type authResponse struct {
	AccessToken string   `json:"access_token"`
	User        authUser `json:"user"`
}

type profileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{
		AccessToken: res.AccessToken,
		User:        authUser{ID: res.User.ID, Email: res.User.Email, Name: res.User.Name},
	}
}

func toProfileResponse(u *model.PublicUser) profileResponse {
	return profileResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// --- Records ---

type createRecordRequest struct {
	Title            string                  `json:"title"`
	Description      *string                 `json:"description"`
	Department       model.Department        `json:"department"`
	DataSubjectTypes []model.DataSubjectType `json:"dataSubjectTypes"`
}

type updateRecordRequest struct {
	Title            *string                  `json:"title"`
	Description      *string                  `json:"description"`
	Department       *model.Department        `json:"department"`
	DataSubjectTypes *[]model.DataSubjectType `json:"dataSubjectTypes"`
}

type creatorResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type recordResponse struct {
	ID               string                  `json:"id"`
	Title            string                  `json:"title"`
	Description      *string                 `json:"description,omitempty"`
	Department       model.Department        `json:"department"`
	DataSubjectTypes []model.DataSubjectType `json:"dataSubjectTypes"`
	CreatedBy        creatorResponse         `json:"createdBy"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

type paginationResponse struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

type recordListResponse struct {
	Data       []recordResponse   `json:"data"`
	Pagination paginationResponse `json:"pagination"`
}

func toRecordResponse(r *model.DataRecord) recordResponse {
	resp := recordResponse{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		Department:       r.Department,
		DataSubjectTypes: r.DataSubjectTypes,
		CreatedBy:        creatorResponse{ID: r.CreatedBy},
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if resp.DataSubjectTypes == nil {
		resp.DataSubjectTypes = []model.DataSubjectType{}
	}
	if r.Creator != nil {
		resp.CreatedBy.Name = r.Creator.Name
		resp.CreatedBy.Email = r.Creator.Email
	}
	return resp
}

func toRecordListResponse(res *service.ListResult) recordListResponse {
	data := make([]recordResponse, 0, len(res.Records))
	for _, r := range res.Records {
		data = append(data, toRecordResponse(r))
	}
	p := res.Pagination
	return recordListResponse{
		Data: data,
		Pagination: paginationResponse{
			Page:        p.Page,
			Limit:       p.Limit,
			Total:       p.Total,
			TotalPages:  p.TotalPages,
			HasNextPage: p.HasNextPage,
			HasPrevPage: p.HasPrevPage,
		},
	}
}
