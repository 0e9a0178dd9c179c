package http

import "github.com/cwrk-planet/pairchat/internal/domain"

type nameResponse struct {
	Name string `json:"name"`
}

type userIDsResponse struct {
	UserIDs []string `json:"user_ids"`
}

type messagesResponse struct {
	Messages []domain.Frame `json:"messages"`
}

type createUserRequest struct {
	Name string `json:"name"`
}

type userResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type errorResponse struct {
	Message string `json:"msg"`
}

func toUserIDs(in []string) []domain.UserID {
	out := make([]domain.UserID, 0, len(in))
	for _, id := range in {
		out = append(out, domain.UserID(id))
	}
	return out
}
