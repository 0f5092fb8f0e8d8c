package port

// ProgressSink получатель прогресса длительной операции.
// Стадии конвейера докладывают прогресс достаточно часто, чтобы внешний
// наблюдатель мог отличить работу от зависания.
type ProgressSink interface {
	// Report принимает прогресс 0.0-1.0 и имя текущей стадии.
	Report(progress float64, stage string)
}

// ProgressFunc адаптер функции к интерфейсу ProgressSink.
type ProgressFunc func(progress float64, stage string)

// Report вызывает функцию-адаптер.
func (f ProgressFunc) Report(progress float64, stage string) {
	if f != nil {
		f(progress, stage)
	}
}

// NopProgress заглушка для случаев, когда прогресс никому не нужен.
var NopProgress ProgressSink = ProgressFunc(nil)
