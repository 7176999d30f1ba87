package postgres

import (
	"github.com/communityforge/door-access-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Jobs    ports.JobRepository
	Devices ports.DeviceRepository
	DoorLog ports.DoorLogRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Jobs:    &jobRepository{db: db},
		Devices: &deviceRepository{db: db},
		DoorLog: &doorLogRepository{db: db},
	}
}
