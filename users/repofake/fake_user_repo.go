package fakeuserrepo

import (
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[int64]*users.StoredUser
	emailIds map[string]int64 // lower-cased email to user id
	nextID   int64
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[int64]*users.StoredUser),
		emailIds: make(map[string]int64),
	}
}

func (ur *FakeUserRepo) Create(email, passwordHash string) (*users.StoredUser, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key := strings.ToLower(email)
	if _, ok := ur.emailIds[key]; ok {
		return nil, users.ErrEmailTaken
	}
	ur.nextID++
	u := &users.StoredUser{
		User:         users.User{ID: ur.nextID, Email: email},
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	ur.users[u.ID] = u
	ur.emailIds[key] = u.ID
	return u, nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.StoredUser, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[strings.ToLower(email)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) GetByID(id int64) (*users.StoredUser, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.StoredUser, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.StoredUser, 0, len(ur.users))
	for _, v := range ur.users {
		userList = append(userList, v)
	}
	sort.Slice(userList, func(i, j int) bool {
		return userList[i].ID < userList[j].ID
	})

	if offset >= len(userList) {
		return nil, nil
	}
	end := len(userList)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return userList[offset:end], nil
}
