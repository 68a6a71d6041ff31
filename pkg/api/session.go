package api

import (
	"errors"
	"unicode/utf8"

	"github.com/chaosgomoku/solive/pkg/config"
)

type (
	InitResponse struct {
		Id     string             `json:"id"`
		Ice    []config.IceServer `json:"ice"`
		FanOut int                `json:"fanOut"`
	}
	HistoryPeek struct {
		Peak      int   `json:"peak"`
		Timestamp int64 `json:"timestamp"`
	}
	SetNicknameRequest struct {
		Nickname string `json:"nickname"`
	}
)

const maxNickname = 32

func validNickname(n string) error {
	if n == "" {
		return errors.New("no nickname")
	}
	if utf8.RuneCountInString(n) > maxNickname {
		return errors.New("nickname is too long")
	}
	return nil
}

func (r *SetNicknameRequest) Validate() error { return validNickname(r.Nickname) }
