package database

import "tidepool/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Follow{},
		&models.Post{},
		&models.Reply{},
		&models.Like{},
		&models.Notification{},
	}
}
