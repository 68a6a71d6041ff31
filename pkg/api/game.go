package api

import (
	"errors"
	"fmt"
)

type DeviceType int

const (
	DeviceUnknown DeviceType = iota
	DeviceMobile
	DevicePC
)

// Profile is a player device with its board size in cells.
type Profile struct {
	DeviceType  DeviceType `json:"deviceType"`
	BoardWidth  int        `json:"boardWidth"`
	BoardHeight int        `json:"boardHeight"`
}

const maxBoard = 64

func (p *Profile) Validate() error {
	if p.DeviceType < DeviceUnknown || p.DeviceType > DevicePC {
		return fmt.Errorf("bad device type %v", p.DeviceType)
	}
	if p.BoardWidth < 0 || p.BoardWidth > maxBoard || p.BoardHeight < 0 || p.BoardHeight > maxBoard {
		return fmt.Errorf("bad board %vx%v", p.BoardWidth, p.BoardHeight)
	}
	return nil
}

type (
	MatchRequest struct {
		Profile
	}
	JoinGameRequest struct {
		RoomId   string `json:"roomId"`
		Nickname string `json:"nickName"`
		Profile
	}
	StepRequest struct {
		I int `json:"i"`
		J int `json:"j"`
	}
	RoomDevice struct {
		RoomDType DeviceType `json:"roomDType"`
		BWidth    int        `json:"bWidth"`
		BHeight   int        `json:"bHeight"`
	}
)

func (r *JoinGameRequest) Validate() error {
	if r.RoomId == "" {
		return errors.New("no room id")
	}
	if err := validNickname(r.Nickname); err != nil {
		return err
	}
	return r.Profile.Validate()
}

func (r *StepRequest) Validate() error {
	if r.I < 0 || r.J < 0 || r.I >= maxBoard || r.J >= maxBoard {
		return fmt.Errorf("step (%v, %v) is off the board", r.I, r.J)
	}
	return nil
}
