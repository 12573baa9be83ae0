package models

import "time"

// User is the minimal account projection the order pipeline joins against.
type User struct {
	ID        int64     `gorm:"column:user_id;primaryKey;autoIncrement" json:"user_id"`
	FirstName string    `gorm:"column:first_name" json:"first_name"`
	LastName  string    `gorm:"column:last_name" json:"last_name"`
	Email     string    `gorm:"column:email;not null" json:"email"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }
