package screens

import (
	"errors"
	"fmt"
	"html/template"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/dashboard-baker/baker/internal/format"
	"github.com/dashboard-baker/baker/internal/listing"
)

// User is one row of the user administration screen.
type User struct {
	ID          int64
	Username    string
	Nome        string
	Email       string
	Role        string
	RoleLabel   string
	Active      bool
	Avatar      string
	LastLogin   string
	TotalLogins int64
}

var roleLabels = map[string]string{
	"admin":     "Administrador",
	"user":      "Usuário",
	"moderator": "Moderador",
}

var roleTones = map[string]string{
	"admin":     format.ToneDanger,
	"moderator": format.ToneWarning,
	"user":      format.ToneInfo,
}

// DecodeUser reads a user row. Presentation fields the backend leaves out are
// derived from the raw ones.
func DecodeUser(item gjson.Result) (User, error) {
	id := item.Get("id")
	if !id.Exists() {
		return User{}, errors.New("id missing")
	}
	u := User{
		ID:          id.Int(),
		Username:    item.Get("username").String(),
		Nome:        item.Get("nome_completo").String(),
		Email:       item.Get("email").String(),
		Role:        item.Get("tipo_usuario").String(),
		RoleLabel:   item.Get("role_label").String(),
		Active:      item.Get("ativo").Bool(),
		Avatar:      item.Get("avatar_letter").String(),
		LastLogin:   item.Get("last_login_formatted").String(),
		TotalLogins: item.Get("total_logins").Int(),
	}
	if u.RoleLabel == "" {
		u.RoleLabel = roleLabels[u.Role]
		if u.RoleLabel == "" {
			u.RoleLabel = roleLabels["user"]
		}
	}
	if u.Avatar == "" {
		name := u.Nome
		if name == "" {
			name = u.Username
		}
		u.Avatar = format.Initial(name)
	}
	if u.LastLogin == "" {
		if raw := item.Get("ultimo_login").String(); raw != "" {
			u.LastLogin = format.DateTime(raw)
		} else {
			u.LastLogin = "Nunca"
		}
	}
	return u, nil
}

// UserRenderer renders the user administration table.
type UserRenderer struct {
	Empty string
}

func (UserRenderer) Columns() []listing.Column {
	return []listing.Column{
		{Key: "usuario", Label: "Usuário"},
		{Key: "tipo_usuario", Label: "Perfil"},
		{Key: "ativo", Label: "Status"},
		{Key: "ultimo_login", Label: "Último acesso"},
		{Key: "total_logins", Label: "Acessos", Class: "text-right"},
	}
}

func (r UserRenderer) EmptyMessage() string {
	if r.Empty != "" {
		return r.Empty
	}
	return "Nenhum usuário encontrado com os filtros aplicados"
}

func (UserRenderer) Row(u User) listing.RowView {
	id := strconv.FormatInt(u.ID, 10)
	name := u.Nome
	if name == "" {
		name = u.Username
	}
	identity := fmt.Sprintf(`<span class="avatar">%s</span><div><strong>%s</strong><br><small class="muted">%s</small></div>`,
		template.HTMLEscapeString(u.Avatar),
		template.HTMLEscapeString(name),
		template.HTMLEscapeString(u.Email))

	status := format.Badge(format.ToneMuted, "Inativo")
	toggle := "Ativar"
	if u.Active {
		status = format.Badge(format.ToneSuccess, "Ativo")
		toggle = "Desativar"
	}

	base := "/admin/api/users/" + id
	return listing.RowView{
		ID: id,
		Cells: []template.HTML{
			template.HTML(identity),
			format.Badge(roleTones[u.Role], u.RoleLabel),
			status,
			template.HTML(template.HTMLEscapeString(u.LastLogin)),
			template.HTML(format.Integer(u.TotalLogins)),
		},
		Actions: []listing.Action{
			{Name: "view", Label: "Ver", Path: base, Method: "GET", Tone: format.ToneInfo},
			{
				Name:    "reset-password",
				Label:   "Resetar senha",
				Path:    base + "/reset-password",
				Method:  "POST",
				Tone:    format.ToneWarning,
				Confirm: fmt.Sprintf("Gerar nova senha para %s?", u.Username),
			},
			{Name: "toggle-status", Label: toggle, Path: base + "/toggle-status", Method: "POST", Tone: format.ToneMuted},
			{
				Name:    "delete",
				Label:   "Excluir",
				Path:    base,
				Method:  "DELETE",
				Tone:    format.ToneDanger,
				Confirm: fmt.Sprintf("Excluir o usuário %s?", u.Username),
			},
		},
	}
}
