package handler

import (
	"errors"
	"net/http"
)

// Аутентификация — внешний участник: до этого сервиса запрос доходит
// через шлюз, который кладет идентификатор субъекта в заголовок
const userIDHeader = "X-User-ID"

var errNoUser = errors.New("missing user id")

func userID(r *http.Request) (string, error) {
	id := r.Header.Get(userIDHeader)
	if id == "" {
		return "", errNoUser
	}
	return id, nil
}
