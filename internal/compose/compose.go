// Package compose описывает контейнеры хранилищ в формате Docker Compose.
package compose

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"testgen/internal/health"
	"testgen/internal/model"
)

// Healthcheck проверка готовности контейнера
type Healthcheck struct {
	Test     []string `yaml:"test"`
	Interval string   `yaml:"interval"`
	Timeout  string   `yaml:"timeout"`
	Retries  int      `yaml:"retries"`
}

// Service сервис Compose
type Service struct {
	Image       string            `yaml:"image"`
	Environment map[string]string `yaml:"environment"`
	Ports       []string          `yaml:"ports"`
	Volumes     []string          `yaml:"volumes"`
	Healthcheck Healthcheck       `yaml:"healthcheck"`
}

// Project файл docker-compose.yml
type Project struct {
	Services map[string]Service  `yaml:"services"`
	Volumes  map[string]struct{} `yaml:"volumes"`
}

// Имена томов, которые переживают перезапуск контейнеров
const (
	PostgresVolume = "postgres_data"
	MongoVolume    = "mongodb_data"
)

// Datastores собирает проект с PostgreSQL и MongoDB. Пароли остаются ссылками
// на переменные окружения и в файл не попадают.
func Datastores(policy health.Policy) Project {
	check := func(test ...string) Healthcheck {
		return Healthcheck{
			Test:     test,
			Interval: formatDuration(policy.Interval),
			Timeout:  formatDuration(policy.Timeout),
			Retries:  policy.Retries,
		}
	}

	return Project{
		Services: map[string]Service{
			"postgres": {
				Image: "postgres:15",
				Environment: map[string]string{
					"POSTGRES_USER":     "postgres",
					"POSTGRES_PASSWORD": "${POSTGRES_PASSWORD}",
					"POSTGRES_DB":       model.AppDatabase,
				},
				Ports:       []string{"5432:5432"},
				Volumes:     []string{PostgresVolume + ":/var/lib/postgresql/data"},
				Healthcheck: check("CMD-SHELL", "pg_isready -U postgres"),
			},
			"mongodb": {
				Image: "mongo:6",
				Environment: map[string]string{
					"MONGO_INITDB_ROOT_USERNAME": "admin",
					"MONGO_INITDB_ROOT_PASSWORD": "${MONGO_PASSWORD}",
					"MONGO_INITDB_DATABASE":      model.AppDatabase,
				},
				Ports:       []string{"27017:27017"},
				Volumes:     []string{MongoVolume + ":/data/db"},
				Healthcheck: check("CMD", "mongosh", "--quiet", "--eval", "db.adminCommand('ping')"),
			},
		},
		Volumes: map[string]struct{}{
			PostgresVolume: {},
			MongoVolume:    {},
		},
	}
}

// Render сериализует проект в YAML
func Render(p Project) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("render compose: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("render compose: %w", err)
	}
	return buf.Bytes(), nil
}

// formatDuration пишет целые секунды, а для долей секунды миллисекунды (1500ms, а не 1.5s)
func formatDuration(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}
