package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type LoginRequest struct {
	CPF        string `json:"cpf"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type UserInfo struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Nickname  string `json:"nickname,omitempty"`
	CPF       string `json:"cpf,omitempty"`
	Profile   string `json:"profile,omitempty"`
	Email     string `json:"email,omitempty"`
	Celular   string `json:"celular,omitempty"`
	Telefone  string `json:"telefone,omitempty"`
	UserPhoto string `json:"user_photo,omitempty"`
}

func (u *UserInfo) Phone() string {
	if u.Celular != "" {
		return u.Celular
	}
	return u.Telefone
}

type LoginResponse struct {
	AccessToken string
	Profile     string
	User        UserInfo
}

type RefreshResponse struct {
	Success     *bool  `json:"success"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type ContextInfo struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	Role      string `json:"role"`
	Profile   string `json:"profile"`
}

type SelectContextRequest struct {
	GroupID string `json:"groupId"`
	Role    string `json:"role"`
}

type SessionContextResponse struct {
	GroupID string
	Role    string
}

// The backend nests the user under "user"; the frontend proxy flattens it into the top level
func decodeLoginResponse(body []byte) (*LoginResponse, error) {
	var envelope struct {
		Success     *bool     `json:"success"`
		Message     string    `json:"message"`
		AccessToken string    `json:"access_token"`
		Profile     string    `json:"profile"`
		User        *UserInfo `json:"user"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: login: %v", ErrSchema, err)
	}

	if envelope.Success != nil && !*envelope.Success {
		return nil, &StatusError{StatusCode: 401, Message: envelope.Message}
	}
	if envelope.AccessToken == "" {
		return nil, fmt.Errorf("%w: login response has no access_token", ErrSchema)
	}

	res := &LoginResponse{
		AccessToken: envelope.AccessToken,
		Profile:     envelope.Profile,
	}

	if envelope.User != nil {
		res.User = *envelope.User
	} else if err := json.Unmarshal(body, &res.User); err != nil {
		return nil, fmt.Errorf("%w: login user: %v", ErrSchema, err)
	}

	if res.Profile == "" {
		res.Profile = res.User.Profile
	}

	return res, nil
}

func decodeContexts(body []byte) ([]ContextInfo, error) {
	var contexts []ContextInfo

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &contexts); err != nil {
			return nil, fmt.Errorf("%w: contexts: %v", ErrSchema, err)
		}
	} else {
		var envelope struct {
			Success  *bool          `json:"success"`
			Contexts *[]ContextInfo `json:"contexts"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: contexts: %v", ErrSchema, err)
		}
		if envelope.Success != nil && !*envelope.Success {
			return nil, fmt.Errorf("%w: contexts reported success=false", ErrSchema)
		}
		if envelope.Contexts == nil {
			return nil, fmt.Errorf("%w: contexts response has no contexts list", ErrSchema)
		}
		contexts = *envelope.Contexts
	}

	for i, c := range contexts {
		if c.GroupID == "" || c.Role == "" {
			return nil, fmt.Errorf("%w: context %d lacks groupId or role", ErrSchema, i)
		}
	}

	return contexts, nil
}

func decodeSessionContext(body []byte) (*SessionContextResponse, error) {
	var res struct {
		Success *bool  `json:"success"`
		GroupID string `json:"active_context_group_id"`
		Role    string `json:"active_context_role"`
		Data    *struct {
			GroupID string `json:"active_context_group_id"`
			Role    string `json:"active_context_role"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: session context: %v", ErrSchema, err)
	}
	if res.Success != nil && !*res.Success {
		return nil, fmt.Errorf("%w: session context reported success=false", ErrSchema)
	}

	out := &SessionContextResponse{GroupID: res.GroupID, Role: res.Role}
	if out.GroupID == "" && res.Data != nil {
		out.GroupID = res.Data.GroupID
		out.Role = res.Data.Role
	}
	return out, nil
}
