package shared

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "shared")

// Service is the lifecycle contract every long-running component registered
// with a ServiceRegistry satisfies: blocking work happens on a goroutine
// Start spawns, Stop tears it down, and Status reports whether the service
// considers itself healthy.
type Service interface {
	Start()
	Stop() error
	Status() error
}

// ServiceRegistry tracks the order services were registered in and starts or
// stops them in (reverse) that order, so callers can register collaborators
// before the services that depend on them and get correct shutdown ordering
// for free.
type ServiceRegistry struct {
	lock     sync.RWMutex
	services map[reflect.Type]Service
	order    []reflect.Type
}

// NewServiceRegistry creates a new registry with no services.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[reflect.Type]Service),
	}
}

// RegisterService appends a service keyed by its concrete type. Registering
// the same type twice is a programmer error and returns an error rather than
// silently overwriting the first registration.
func (r *ServiceRegistry) RegisterService(service Service) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	kind := reflect.TypeOf(service)
	if _, exists := r.services[kind]; exists {
		return fmt.Errorf("service already registered: %v", kind)
	}
	r.services[kind] = service
	r.order = append(r.order, kind)
	return nil
}

// FetchService fills in the value pointed to by service with the registered
// service of that type, for wiring a later-registered service to an earlier
// one without a package-level import cycle.
func (r *ServiceRegistry) FetchService(service interface{}) error {
	r.lock.RLock()
	defer r.lock.RUnlock()

	target := reflect.TypeOf(service)
	if target.Kind() != reflect.Ptr {
		return fmt.Errorf("argument to FetchService must be a pointer, got %v", target.Kind())
	}
	elem := target.Elem()
	if running, ok := r.services[elem]; ok {
		reflect.ValueOf(service).Elem().Set(reflect.ValueOf(running))
		return nil
	}
	return fmt.Errorf("unknown service: %v", elem)
}

// StartAll starts every registered service in registration order.
func (r *ServiceRegistry) StartAll() {
	r.lock.RLock()
	defer r.lock.RUnlock()

	log.Debugf("Starting %d services: %v", len(r.order), r.order)
	for _, kind := range r.order {
		log.Debugf("Starting service: %v", kind)
		r.services[kind].Start()
	}
}

// StopAll stops every registered service in reverse registration order, so a
// service's dependencies outlive it during shutdown.
func (r *ServiceRegistry) StopAll() {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		kind := r.order[i]
		service := r.services[kind]
		if err := service.Stop(); err != nil {
			log.Errorf("Could not stop the following service: %v, %v", kind, err)
		}
	}
}

// Statuses returns the Status() error of each registered service, keyed by
// its concrete type, for a liveness/readiness check to aggregate.
func (r *ServiceRegistry) Statuses() map[reflect.Type]error {
	r.lock.RLock()
	defer r.lock.RUnlock()

	statuses := make(map[reflect.Type]error, len(r.order))
	for _, kind := range r.order {
		statuses[kind] = r.services[kind].Status()
	}
	return statuses
}
