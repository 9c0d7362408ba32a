// internal/models/role.go
package models

import (
	"time"

	"steppe-logistics.kz/internal/permissions"
)

type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultRoles - роли, которые создаются при старте, если их нет в БД.
var DefaultRoles = []Role{
	{Name: string(permissions.RoleAdmin), Description: "Администратор, полный доступ к админке"},
	{Name: string(permissions.RoleStaff), Description: "Менеджер: заявки и сообщения"},
	{Name: string(permissions.RoleWarehouse), Description: "Склад: обзор, заявки, сообщения"},
	{Name: string(permissions.RoleFinance), Description: "Финансы: обзор и заявки"},
	{Name: string(permissions.RoleCustomer), Description: "Клиент, роль по умолчанию"},
	{Name: string(permissions.RolePartner), Description: "Партнер, без доступа к админке"},
}

// DefaultRoleName получают все новые пользователи.
const DefaultRoleName = string(permissions.RoleCustomer)
