package provision

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"testgen/internal/health"
	"testgen/internal/model"
)

// mongoAdmin административные операции MongoDB
type mongoAdmin interface {
	UserExists(ctx context.Context, database, username string) (bool, error)
	CreateUser(ctx context.Context, cred model.Credential) error
	CollectionExists(ctx context.Context, database, collection string) (bool, error)
	CreateCollection(ctx context.Context, database, collection string) error
	EnsureUniqueIndex(ctx context.Context, database, collection, field, name string) error
}

// MongoInitializer создает пользователя, коллекцию test_patterns и уникальный индекс
type MongoInitializer struct {
	admin      mongoAdmin
	probe      health.Probe
	poller     *health.Poller
	credential model.Credential
	logger     *zap.Logger
}

// NewMongoInitializer создает инициализатор поверх административного клиента
func NewMongoInitializer(client *mongo.Client, password string, poller *health.Poller, logger *zap.Logger) *MongoInitializer {
	return &MongoInitializer{
		admin:      driverAdmin{client: client},
		probe:      health.NewMongoProbe(client),
		poller:     poller,
		credential: model.AppCredential(password),
		logger:     logger,
	}
}

// Name возвращает имя хранилища
func (i *MongoInitializer) Name() string {
	return "mongodb"
}

// Init выполняет инициализацию
func (i *MongoInitializer) Init(ctx context.Context) error {
	if err := i.credential.Validate(); err != nil {
		return fmt.Errorf("invalid mongodb credential: %w", err)
	}
	if err := i.poller.WaitHealthy(ctx, i.Name(), i.probe); err != nil {
		return err
	}

	cred := i.credential

	exists, err := i.admin.UserExists(ctx, cred.Database, cred.Username)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if exists {
		i.logger.Info("User already exists", zap.Object("credential", cred))
	} else {
		if err := i.admin.CreateUser(ctx, cred); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		i.logger.Info("User created", zap.Object("credential", cred))
	}

	exists, err = i.admin.CollectionExists(ctx, cred.Database, model.PatternCollection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		if err := i.admin.CreateCollection(ctx, cred.Database, model.PatternCollection); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		i.logger.Info("Collection created", zap.String("collection", model.PatternCollection))
	}

	if err := i.admin.EnsureUniqueIndex(ctx, cred.Database, model.PatternCollection, model.PatternNameField, model.PatternIndexName); err != nil {
		return fmt.Errorf("failed to create index %s: %w", model.PatternIndexName, err)
	}
	return nil
}

// driverAdmin реализует mongoAdmin через официальный драйвер
type driverAdmin struct {
	client *mongo.Client
}

func (a driverAdmin) UserExists(ctx context.Context, database, username string) (bool, error) {
	var res struct {
		Users []bson.M `bson:"users"`
	}
	cmd := bson.D{{Key: "usersInfo", Value: bson.D{
		{Key: "user", Value: username},
		{Key: "db", Value: database},
	}}}
	if err := a.client.Database(database).RunCommand(ctx, cmd).Decode(&res); err != nil {
		return false, err
	}
	return len(res.Users) > 0, nil
}

func (a driverAdmin) CreateUser(ctx context.Context, cred model.Credential) error {
	cmd := bson.D{
		{Key: "createUser", Value: cred.Username},
		{Key: "pwd", Value: cred.Password},
		{Key: "roles", Value: bson.A{
			bson.D{{Key: "role", Value: cred.Role}, {Key: "db", Value: cred.Database}},
		}},
	}
	return a.client.Database(cred.Database).RunCommand(ctx, cmd).Err()
}

func (a driverAdmin) CollectionExists(ctx context.Context, database, collection string) (bool, error) {
	names, err := a.client.Database(database).ListCollectionNames(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

func (a driverAdmin) CreateCollection(ctx context.Context, database, collection string) error {
	return a.client.Database(database).CreateCollection(ctx, collection)
}

// EnsureUniqueIndex идемпотентен: MongoDB не пересоздает индекс с тем же именем и ключами
func (a driverAdmin) EnsureUniqueIndex(ctx context.Context, database, collection, field, name string) error {
	_, err := a.client.Database(database).Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetName(name).SetUnique(true),
	})
	return err
}
