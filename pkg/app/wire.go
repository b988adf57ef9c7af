package app

// Components 收集 Wire 注入的服务与资源
type Components struct {
	Servers []Server
	Closers []Closer
}

// Bind 将注入的组件挂到 BaseApp 上
func Bind(app *BaseApp, comps Components) Application {
	app.AppendServer(comps.Servers...)
	app.AppendCloser(comps.Closers...)
	return app
}

// CloserFunc 把普通函数适配为 Closer
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }
