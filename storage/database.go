// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/gorse-io/funksvd/base/log"
	"github.com/gorse-io/funksvd/dataset"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	_ "modernc.org/sqlite"
)

// SQLRating is the row of the ratings table. Rows are loaded in ID order, which
// is the insertion order.
type SQLRating struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	UserId int64 `gorm:"index"`
	ItemId int64 `gorm:"index"`
	Rating float64
}

// RatingStore keeps rating triples in a SQL database.
type RatingStore struct {
	TablePrefix
	driver string
	gormDB *gorm.DB
}

func NewGORMConfig(tablePrefix string) *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Logger()), logger.Config{
			SlowThreshold:             10 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		CreateBatchSize:        1000,
		SkipDefaultTransaction: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   tablePrefix,
			SingularTable: true,
			NameReplacer:  strings.NewReplacer("SQLRating", "Ratings"),
		},
	}
}

// Open connects to a rating database. The driver is chosen by the URL scheme:
// mysql://, postgres://, postgresql:// or sqlite://.
func Open(path, tablePrefix string) (*RatingStore, error) {
	var err error
	store := &RatingStore{TablePrefix: TablePrefix(tablePrefix)}
	spanOptions := otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true})
	switch {
	case strings.HasPrefix(path, MySQLPrefix):
		name := path[len(MySQLPrefix):]
		if name, err = AppendMySQLParams(name, map[string]string{"parseTime": "true"}); err != nil {
			return nil, errors.Trace(err)
		}
		db, err := otelsql.Open("mysql", name, otelsql.WithAttributes(attribute.String("db.system", "mysql")), spanOptions)
		if err != nil {
			return nil, errors.Trace(err)
		}
		store.driver = "mysql"
		if store.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: db}), NewGORMConfig(tablePrefix)); err != nil {
			return nil, errors.Trace(err)
		}
	case strings.HasPrefix(path, PostgresPrefix), strings.HasPrefix(path, PostgreSQLPrefix):
		db, err := otelsql.Open("postgres", path, otelsql.WithAttributes(attribute.String("db.system", "postgresql")), spanOptions)
		if err != nil {
			return nil, errors.Trace(err)
		}
		store.driver = "postgres"
		if store.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: db}), NewGORMConfig(tablePrefix)); err != nil {
			return nil, errors.Trace(err)
		}
	case strings.HasPrefix(path, SQLitePrefix):
		if path, err = AppendURLParams(path, []lo.Tuple2[string, string]{
			{"_pragma", "busy_timeout(10000)"},
			{"_pragma", "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		name := path[len(SQLitePrefix):]
		db, err := otelsql.Open("sqlite", name, otelsql.WithAttributes(attribute.String("db.system", "sqlite")), spanOptions)
		if err != nil {
			return nil, errors.Trace(err)
		}
		store.driver = "sqlite"
		if store.gormDB, err = gorm.Open(sqlite.Dialector{Conn: db}, NewGORMConfig(tablePrefix)); err != nil {
			return nil, errors.Trace(err)
		}
	default:
		return nil, errors.NotSupportedf("database %s", log.RedactDBURL(path))
	}
	return store, nil
}

// Init creates the ratings table if it does not exist.
func (s *RatingStore) Init() error {
	return errors.Trace(s.gormDB.AutoMigrate(&SQLRating{}))
}

func (s *RatingStore) Close() error {
	db, err := s.gormDB.DB()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(db.Close())
}

// Purge deletes all ratings.
func (s *RatingStore) Purge() error {
	return errors.Trace(s.gormDB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SQLRating{}).Error)
}

// InsertRatings appends ratings in order.
func (s *RatingStore) InsertRatings(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	rows := lo.Map(ratings, func(r dataset.Rating, _ int) SQLRating {
		return SQLRating{UserId: r.UserId, ItemId: r.ItemId, Rating: r.Value}
	})
	return errors.Trace(s.gormDB.WithContext(ctx).Create(&rows).Error)
}

func (s *RatingStore) CountRatings(ctx context.Context) (int, error) {
	var count int64
	if err := s.gormDB.WithContext(ctx).Model(&SQLRating{}).Count(&count).Error; err != nil {
		return 0, errors.Trace(err)
	}
	return int(count), nil
}

// LoadRatings returns all ratings in insertion order.
func (s *RatingStore) LoadRatings(ctx context.Context) ([]dataset.Rating, error) {
	start := time.Now()
	rows, err := s.gormDB.WithContext(ctx).Model(&SQLRating{}).
		Select("user_id, item_id, rating").Order("id").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	var ratings []dataset.Rating
	for rows.Next() {
		var r dataset.Rating
		if err = rows.Scan(&r.UserId, &r.ItemId, &r.Value); err != nil {
			return nil, errors.Trace(err)
		}
		ratings = append(ratings, r)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load ratings from database",
		zap.String("driver", s.driver),
		zap.Int("n_ratings", len(ratings)),
		zap.Duration("load_time", time.Since(start)))
	return ratings, nil
}
