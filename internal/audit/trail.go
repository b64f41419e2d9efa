package audit

/*
Файл trail.go реализует журнал обработки (Audit Trail) — движок для сбора
и персистентности данных о каждом прошедшем через шлюз запросе.

Ключевые особенности архитектуры:
- Non-blocking Logging: Использование неблокирующих каналов для передачи событий
  из Hot Path шлюза. Это гарантирует, что задержки записи в БД не влияют на Response Time.
- Batching & Efficiency: Накопление событий в памяти и пакетная запись (Bulk Insert)
  в PostgreSQL по таймеру или при достижении лимита (100 событий).
- Drain Pattern & Graceful Shutdown: Реализован механизм полной вычитки буфера
  при остановке сервиса. С помощью sync.WaitGroup и закрытия каналов гарантируется
  Final Flush — отсутствие потерь данных при перезагрузке системы.
- Reliability: Устойчивость к кратковременным сбоям БД за счет изоляции воркера
  и использования контекста Background для завершающих операций.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться записи
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []ProcessingEvent) error
}

type Recorder interface {
	Record(event ProcessingEvent)
}

const batchSize = 100 // предел пачки для Bulk Insert

type Trail struct {
	ch            chan ProcessingEvent // Буфер для асинхронности
	repo          StorageInterface     // Интерфейс для Postgres
	flushInterval time.Duration
	logger        *zap.Logger
	wg            sync.WaitGroup
	// Защита от случайного Record после остановки
	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

// NewTrail создает журнал. bufSize и flushInterval берутся из конфигурации
// движка; нулевые значения заменяются дефолтами (10000 событий / 500мс).
func NewTrail(repo StorageInterface, logger *zap.Logger, bufSize int, flushInterval time.Duration) *Trail {
	if bufSize <= 0 {
		bufSize = 10000
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	t := &Trail{
		ch:            make(chan ProcessingEvent, bufSize),
		repo:          repo,
		flushInterval: flushInterval,
		logger:        logger.With(zap.String("mod", "audit_trail")),
		wg:            sync.WaitGroup{},
	}
	return t
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	// 1. Сначала ставим флаг
	atomic.StoreInt32(&t.isClosed, 1)

	// 2. Даем крошечную паузу, чтобы текущие Record успели проскочить
	time.Sleep(10 * time.Millisecond)

	// 3. Закрываем (Drain Pattern). Завершение горутины происходит исключительно через закрытие входного канала.
	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch) // 1. Закрываем канал. Новые события больше не принимаются.
	t.wg.Wait() // 2. Ждем, пока воркер вычитает остатки из канала и вызовет flush().
	t.logger.Info("audit trail stopped gracefully")
}

func (t *Trail) Record(event ProcessingEvent) {
	// Убеждаемся, что таймстемп всегда проставлен
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Атомарно проверяем, не закрыт ли канал
	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// используем стратегию Load Shedding (сброс нагрузки)
	select {
	case t.ch <- event:
	default:
		// Если канал переполнен (Backpressure), пишем в стандартный логгер
		// Чтобы не терять данные в критических ситуациях
		t.logger.Error("audit_buffer_overflow",
			zap.String("input_hash", event.InputHash),
			zap.String("trace_id", event.TraceID),
		)
	}
}

// BufferFill — текущая заполненность очереди, для метрики backpressure.
func (t *Trail) BufferFill() int { return len(t.ch) }

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]ProcessingEvent, 0, batchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Используем Background, так как основной контекст может быть уже закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop() — это самодостаточный сигнал для завершения.
				// Воркер сначала вычитает остатки очереди, получит ok == false,
				// вызовет финальный flush() и выйдет.
				flush() // Финальный сброс
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
