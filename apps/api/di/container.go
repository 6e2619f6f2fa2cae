package di

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/danielortegac/qlase/apps/api/echo"
	"github.com/danielortegac/qlase/core"
	"github.com/danielortegac/qlase/core/course"
	"github.com/danielortegac/qlase/core/notification"
	"github.com/danielortegac/qlase/core/publication"
	"github.com/danielortegac/qlase/core/user"
	aisvc "github.com/danielortegac/qlase/services/ai"
	emailsvc "github.com/danielortegac/qlase/services/email"
	logsvc "github.com/danielortegac/qlase/services/logger"
	metricsvc "github.com/danielortegac/qlase/services/metrics"
	"github.com/danielortegac/qlase/storage"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf            *core.Config
	Logger          core.Logger
	Validate        *validator.Validate
	Translator      ut.Translator
	UserSvc         user.Service
	CourseSvc       course.Service
	NotificationSvc notification.Dispatcher
	PublicationSvc  publication.Service
	Metrics         *metricsvc.PrometheusRecorder
}

type repos struct {
	dig.Out

	Users         user.Repository
	Courses       course.Repository
	Notifications notification.Repository
	Publications  publication.Repository
	Tx            core.Transactor
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) *storage.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 2*conf.Database.Timeout)
	defer cancel()

	store, err := storage.Open(ctx, conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return store
}

func newRepos(store *storage.Store) repos {
	return repos{
		Users:         store.Users,
		Courses:       store.Courses,
		Notifications: store.Notifications,
		Publications:  store.Publications,
		Tx:            store.Tx,
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newRecorder(r *metricsvc.PrometheusRecorder) core.Recorder { return r }

// the services only depend on the narrow interfaces they need
func newRecipients(svc user.Service) notification.Recipients { return svc }
func newCourseUsers(svc user.Service) course.UserService { return svc }
func newStorageCharger(svc user.Service) publication.StorageCharger { return svc }
func newNotifier(d notification.Dispatcher) course.Notifier { return d }

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		CourseSvc:       p.CourseSvc,
		NotificationSvc: p.NotificationSvc,
		PublicationSvc:  p.PublicationSvc,
		Metrics:         p.Metrics.Handler(),
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newRepos))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(metricsvc.NewPrometheusRecorder))
	must(c.Provide(newRecorder))
	must(c.Provide(aisvc.NewGenerator))

	must(c.Provide(user.NewService))
	must(c.Provide(newRecipients))
	must(c.Provide(newCourseUsers))
	must(c.Provide(newStorageCharger))
	must(c.Provide(notification.NewDispatcher))
	must(c.Provide(newNotifier))
	must(c.Provide(course.NewService))
	must(c.Provide(publication.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
