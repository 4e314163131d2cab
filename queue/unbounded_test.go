package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/send"
	"github.com/mongodb/threadpool"
	"github.com/mongodb/threadpool/job"
	"github.com/stretchr/testify/suite"
)

func init() {
	grip.SetName("threadpool.queue.tests")
	grip.Error(grip.SetSender(send.MakeNative()))

	lvl := grip.GetSender().Level()
	lvl.Threshold = level.Error
	_ = grip.GetSender().SetLevel(lvl)
}

type UnboundedSuite struct {
	queue *Unbounded
	suite.Suite
}

func TestUnboundedSuite(t *testing.T) {
	suite.Run(t, new(UnboundedSuite))
}

func (s *UnboundedSuite) SetupTest() {
	s.queue = NewUnbounded()
}

func (s *UnboundedSuite) TestImplementationCompliance() {
	s.Implements((*threadpool.Dispatcher)(nil), s.queue)
}

func (s *UnboundedSuite) TestNewQueueIsOpenAndEmpty() {
	s.False(s.queue.Closed())
	s.Equal(0, s.queue.Len())
}

func (s *UnboundedSuite) TestPutRejectsNilJobs() {
	err := s.queue.Put(nil)
	s.Error(err)
	s.False(threadpool.IsChannelClosedError(err))
	s.Equal(0, s.queue.Len())
}

func (s *UnboundedSuite) TestSingleConsumerReceivesJobsInOrder() {
	for i := 0; i < 500; i++ {
		s.Require().NoError(s.queue.Put(job.NewNamedFunc(fmt.Sprint(i), nil)))
	}
	s.Equal(500, s.queue.Len())

	for i := 0; i < 500; i++ {
		j, ok := s.queue.Next()
		s.Require().True(ok)
		s.Equal(fmt.Sprint(i), j.ID())
	}
	s.Equal(0, s.queue.Len())

	put, delivered := s.queue.counts()
	s.Equal(500, put)
	s.Equal(500, delivered)
}

func (s *UnboundedSuite) TestInterleavedPutAndNextKeepOrder() {
	next := 0
	for round := 0; round < 20; round++ {
		for i := 0; i < 50; i++ {
			s.Require().NoError(s.queue.Put(job.NewNamedFunc(fmt.Sprint(round*50+i), nil)))
		}
		for i := 0; i < 30; i++ {
			j, ok := s.queue.Next()
			s.Require().True(ok)
			s.Require().Equal(fmt.Sprint(next), j.ID())
			next++
		}
	}

	s.queue.Close()
	for {
		j, ok := s.queue.Next()
		if !ok {
			break
		}
		s.Require().Equal(fmt.Sprint(next), j.ID())
		next++
	}
	s.Equal(1000, next)
}

func (s *UnboundedSuite) TestPutAfterCloseFails() {
	s.queue.Close()
	s.True(s.queue.Closed())

	err := s.queue.Put(job.NewFunc(func() {}))
	s.Error(err)
	s.True(threadpool.IsChannelClosedError(err))
	s.Equal(0, s.queue.Len())
}

func (s *UnboundedSuite) TestCloseIsIdempotent() {
	s.queue.Close()
	s.NotPanics(s.queue.Close)
	s.True(s.queue.Closed())
}

func (s *UnboundedSuite) TestClosedQueueDrainsBeforeEndOfStream() {
	s.Require().NoError(s.queue.Put(job.NewNamedFunc("a", nil)))
	s.Require().NoError(s.queue.Put(job.NewNamedFunc("b", nil)))
	s.queue.Close()

	j, ok := s.queue.Next()
	s.True(ok)
	s.Equal("a", j.ID())

	j, ok = s.queue.Next()
	s.True(ok)
	s.Equal("b", j.ID())

	j, ok = s.queue.Next()
	s.False(ok)
	s.Nil(j)
}

func (s *UnboundedSuite) TestNextBlocksUntilPut() {
	received := make(chan threadpool.Job)
	go func() {
		j, _ := s.queue.Next()
		received <- j
	}()

	select {
	case <-received:
		s.Fail("next returned on an empty open queue")
	case <-time.After(20 * time.Millisecond):
	}

	s.Require().NoError(s.queue.Put(job.NewNamedFunc("wake", nil)))

	select {
	case j := <-received:
		s.Equal("wake", j.ID())
	case <-time.After(time.Second):
		s.Fail("next did not return after put")
	}
}

func (s *UnboundedSuite) TestCloseWakesAllWaiters() {
	const waiters = 8
	done := make(chan bool, waiters)

	for i := 0; i < waiters; i++ {
		go func() {
			_, ok := s.queue.Next()
			done <- ok
		}()
	}

	time.Sleep(10 * time.Millisecond)
	s.queue.Close()

	for i := 0; i < waiters; i++ {
		select {
		case ok := <-done:
			s.False(ok)
		case <-time.After(time.Second):
			s.FailNow("waiter was not released by close")
		}
	}
}

func (s *UnboundedSuite) TestCompetingConsumersReceiveEachJobOnce() {
	const (
		consumers = 8
		producers = 4
		perProd   = 250
	)

	seen := struct {
		sync.Mutex
		ids map[string]int
	}{ids: map[string]int{}}

	cwg := &sync.WaitGroup{}
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				j, ok := s.queue.Next()
				if !ok {
					return
				}
				seen.Lock()
				seen.ids[j.ID()]++
				seen.Unlock()
			}
		}()
	}

	pwg := &sync.WaitGroup{}
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < perProd; i++ {
				s.NoError(s.queue.Put(job.NewNamedFunc(fmt.Sprintf("%d-%d", p, i), nil)))
			}
		}(p)
	}

	pwg.Wait()
	s.queue.Close()
	cwg.Wait()

	s.Len(seen.ids, producers*perProd)
	for id, count := range seen.ids {
		s.Equal(1, count, id)
	}
	s.Equal(0, s.queue.Len())
}
