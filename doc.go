// Package kubit provides the inversion of control container at the heart of a
// Kubit application.
//
// Values are registered under string namespaces such as "Kubit/Core/Logger"
// and resolved lazily. Besides plain bindings the container understands
// aliases, test fakes, import alias paths and catch-all traps, and it injects
// dependencies into constructors, methods and tagged struct fields.
//
// # Quick Start
//
//	ioc := kubit.New()
//	ioc.Singleton("App/Services/Mailer", func(r kubit.Resolver) (any, error) {
//	    return mailer.New(), nil
//	})
//
//	m, err := kubit.Use[*mailer.Mailer](ioc, "App/Services/Mailer")
//
// # Lifetimes
//
// Transient bindings run their callback on every resolution:
//
//	ioc.Bind("App/Request/Id", func(r kubit.Resolver) (any, error) {
//	    return uuid.NewString(), nil
//	})
//
// Singletons are built once. A failed build is retried on the next Use:
//
//	ioc.Singleton("Kubit/Addons/Redis", newRedisClient)
//
// Scoped bindings get one instance per Scope and are disposed with it:
//
//	scope := ioc.CreateScope()
//	defer scope.Dispose()
//	tx, err := scope.Use("App/Db/Transaction")
//
// # Resolution Order
//
// Use consults, in order: fakes (only when proxies are enabled), bindings,
// aliases, import alias paths registered with Autoload, and traps. A namespace
// nothing resolves fails with an error matching ErrLookupFailed.
//
// # Injection
//
// Constructors are plain functions whose parameters are resolved through the
// type index (see RegisterType). Resolver, *Ioc and context.Context
// parameters are supplied directly:
//
//	ioc.SingletonConstructor("App/Services/Users", NewUserService)
//	// func NewUserService(log *slog.Logger, db *pgxpool.Pool) (*UserService, error)
//
// Struct fields opt in with the inject tag:
//
//	type UsersController struct {
//	    Log    *slog.Logger `inject:"Kubit/Core/Logger"`
//	    Users  *UserService `inject:""`
//	    Mailer Mailer       `inject:",optional"`
//	}
//
//	ctrl, err := kubit.MakeAs[*UsersController](ioc, &UsersController{})
//
// # Fakes
//
// Tests swap implementations without touching the wiring code:
//
//	ioc.UseProxies(true)
//	ioc.Fake("App/Services/Mailer", func(r kubit.Resolver) (any, error) {
//	    return &FakeMailer{}, nil
//	})
//	defer ioc.Restore("App/Services/Mailer")
//
// # Thread Safety
//
// All operations are safe for concurrent use.
package kubit
