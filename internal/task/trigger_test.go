package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTriggers(t *testing.T, tick time.Duration) *TriggerScheduler {
	t.Helper()

	scheduler := NewScheduler(2, tick)
	require.NoError(t, scheduler.Start())
	t.Cleanup(scheduler.Stop)

	return NewTriggerScheduler(scheduler)
}

func TestTriggerScheduler_ArmFires(t *testing.T) {
	ts := newTestTriggers(t, testTick)

	var fired atomic.Int32
	trigger, err := ts.Arm("room-1", TriggerRevealLeaderboard, time.Now().Add(200*time.Millisecond), func(ctx context.Context) error {
		fired.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "room-1", trigger.RoomKey)
	assert.NotEmpty(t, trigger.TaskID)

	got, ok := ts.Lookup("room-1", TriggerRevealLeaderboard)
	require.True(t, ok)
	assert.Equal(t, trigger.TaskID, got.TaskID)

	require.Eventually(t, func() bool { return fired.Load() == 1 }, 2*time.Second, testTick)
	assert.Equal(t, 0, ts.Pending())

	_, ok = ts.Lookup("room-1", TriggerRevealLeaderboard)
	assert.False(t, ok)
}

func TestTriggerScheduler_RearmSupersedes(t *testing.T) {
	ts := newTestTriggers(t, testTick)

	var first, second atomic.Int32
	firstAt := time.Now().Add(300 * time.Millisecond)
	_, err := ts.Arm("room-1", TriggerAdvanceTurn, firstAt, func(ctx context.Context) error {
		first.Add(1)
		return nil
	})
	require.NoError(t, err)

	_, err = ts.Arm("room-1", TriggerAdvanceTurn, time.Now().Add(100*time.Millisecond), func(ctx context.Context) error {
		second.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ts.Pending())

	require.Eventually(t, func() bool { return second.Load() == 1 }, 2*time.Second, testTick)

	// 等过第一次登记的到期时间
	time.Sleep(time.Until(firstAt) + 5*testTick)
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, 0, ts.Pending())
}

func TestTriggerScheduler_RearmRemovesOldTask(t *testing.T) {
	ts := newTestTriggers(t, time.Hour)

	_, err := ts.Arm("room-1", TriggerAdvanceTurn, time.Now().Add(30*time.Second), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	_, err = ts.Arm("room-1", TriggerAdvanceTurn, time.Now().Add(40*time.Second), func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, 1, ts.Pending())
	assert.Equal(t, 1, ts.scheduler.wheel.GetTotalTaskCount())
}

func TestTriggerScheduler_ClaimRejectsSuperseded(t *testing.T) {
	ts := newTestTriggers(t, time.Hour)

	old, err := ts.Arm("room-1", TriggerRevealLeaderboard, time.Now().Add(10*time.Second), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	cur, err := ts.Arm("room-1", TriggerRevealLeaderboard, time.Now().Add(10*time.Second), func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	key := triggerKey{roomKey: "room-1", kind: TriggerRevealLeaderboard}
	assert.False(t, ts.claim(key, old.TaskID))
	assert.True(t, ts.claim(key, cur.TaskID))
	// 只能认领一次
	assert.False(t, ts.claim(key, cur.TaskID))
}

func TestTriggerScheduler_StaleTaskReturnsErrStaleTrigger(t *testing.T) {
	ts := newTestTriggers(t, time.Hour)

	var fired atomic.Int32
	fn := func(ctx context.Context) error {
		fired.Add(1)
		return nil
	}
	old, err := ts.Arm("room-1", TriggerAdvanceTurn, time.Now().Add(10*time.Second), fn)
	require.NoError(t, err)

	// 模拟旧任务已经被取出：直接构造与旧任务相同的执行路径
	key := triggerKey{roomKey: "room-1", kind: TriggerAdvanceTurn}
	stale := NewTask(old.TaskID, "room-1", 1, func(ctx context.Context) error {
		if !ts.claim(key, old.TaskID) {
			return ErrStaleTrigger
		}
		return fn(ctx)
	})

	_, err = ts.Arm("room-1", TriggerAdvanceTurn, time.Now().Add(10*time.Second), fn)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Execute(context.Background()), ErrStaleTrigger)
	assert.Equal(t, int32(0), fired.Load())
}

func TestTriggerScheduler_Disarm(t *testing.T) {
	ts := newTestTriggers(t, time.Hour)

	noop := func(ctx context.Context) error { return nil }
	for _, kind := range []TriggerKind{TriggerRevealLeaderboard, TriggerAdvanceTurn} {
		_, err := ts.Arm("room-1", kind, time.Now().Add(10*time.Second), noop)
		require.NoError(t, err)
	}
	_, err := ts.Arm("room-2", TriggerAdvanceTurn, time.Now().Add(10*time.Second), noop)
	require.NoError(t, err)
	require.Equal(t, 3, ts.Pending())

	ts.Disarm("room-1")

	assert.Equal(t, 1, ts.Pending())
	assert.Equal(t, 1, ts.scheduler.wheel.GetTotalTaskCount())
	_, ok := ts.Lookup("room-2", TriggerAdvanceTurn)
	assert.True(t, ok)

	// 未登记的房间不受影响
	ts.Disarm("room-unknown")
	assert.Equal(t, 1, ts.Pending())
}

func TestTimeWheel_DeadlineToTicks(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name     string
		interval time.Duration
		firesAt  time.Time
		want     int
	}{
		{name: "past", interval: time.Second, firesAt: base.Add(-5 * time.Second), want: 1},
		{name: "sub-second", interval: time.Second, firesAt: base.Add(200 * time.Millisecond), want: 1},
		{name: "round up", interval: time.Second, firesAt: base.Add(60*time.Second + time.Millisecond), want: 61},
		{name: "exact", interval: time.Second, firesAt: base.Add(75 * time.Second), want: 75},
		{name: "short tick", interval: 100 * time.Millisecond, firesAt: base.Add(2 * time.Second), want: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wheel := NewTimeWheel(tt.interval)
			defer wheel.Stop()
			wheel.now = func() time.Time { return base }

			task := NewTask("task-1", "room-1", 1, nil).WithDeadline(tt.firesAt)
			require.NoError(t, wheel.AddTask(task))
			assert.Equal(t, tt.want, task.Delay)
		})
	}
}

func TestTimeWheel_DeadlineNotFiredEarly(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	clock := base

	wheel := NewTimeWheel(time.Second)
	defer wheel.Stop()
	wheel.now = func() time.Time { return clock }

	firesAt := base.Add(1500 * time.Millisecond)
	task := NewTask("task-1", "room-1", 1, nil).WithDeadline(firesAt)
	require.NoError(t, wheel.AddTask(task))
	require.Equal(t, 2, task.Delay)

	// tick 相位早于登记时刻：第二个 tick 时只过了 400ms
	for _, elapsed := range []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 900 * time.Millisecond} {
		clock = base.Add(elapsed)
		assert.Empty(t, wheel.Tick(), "elapsed %s", elapsed)
	}
	assert.Equal(t, 1, wheel.GetTotalTaskCount())

	clock = base.Add(1500 * time.Millisecond)
	due := wheel.Tick()
	require.Len(t, due, 1)
	assert.Equal(t, "task-1", due[0].ID)
	assert.Equal(t, 0, wheel.GetTotalTaskCount())
	assert.False(t, wheel.RemoveTask("task-1"))
}

func TestTriggerScheduler_FiresNoEarlierThanDeadline(t *testing.T) {
	for _, tick := range []time.Duration{testTick, 100 * time.Millisecond} {
		t.Run(tick.String(), func(t *testing.T) {
			ts := newTestTriggers(t, tick)
			// 登记时刻落在两个 tick 之间
			time.Sleep(tick / 3)

			firedCh := make(chan time.Time, 1)
			firesAt := time.Now().Add(350 * time.Millisecond)
			_, err := ts.Arm("room-1", TriggerRevealLeaderboard, firesAt, func(ctx context.Context) error {
				firedCh <- time.Now()
				return nil
			})
			require.NoError(t, err)

			select {
			case firedAt := <-firedCh:
				assert.False(t, firedAt.Before(firesAt), "fired %s early", firesAt.Sub(firedAt))
			case <-time.After(2 * time.Second):
				t.Fatal("trigger did not fire")
			}
		})
	}
}

func TestTriggerScheduler_ArmOnStoppedScheduler(t *testing.T) {
	scheduler := NewScheduler(1, time.Hour)
	ts := NewTriggerScheduler(scheduler)

	_, err := ts.Arm("room-1", TriggerAdvanceTurn, time.Now().Add(time.Second), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
	assert.Equal(t, 0, ts.Pending())
}
