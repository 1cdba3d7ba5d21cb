package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/commercelab/storefront/internal/config"
	inErr "github.com/commercelab/storefront/internal/errors"
	"github.com/commercelab/storefront/internal/identity"
	"github.com/commercelab/storefront/internal/log"
	inOtel "github.com/commercelab/storefront/internal/otel"
	"github.com/commercelab/storefront/internal/repository"
	"github.com/commercelab/storefront/user/pkg/request"
	"github.com/commercelab/storefront/user/pkg/response"
)

const uniqueViolation = "23505"

type UserService struct {
	queries *repository.Queries
	config  config.Application
}

func NewUserService(queries *repository.Queries, config config.Application) UserService {
	return UserService{queries: queries, config: config}
}

func (s UserService) Register(
	c context.Context,
	param request.Register,
) (response.Auth, error) {
	c, span := inOtel.Tracer.Start(c, "UserService Register")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "UserService Register").
		Str(log.KeyEmail, param.Email).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "hashing password").Logger()
	logger.Info().Msg("hashing password")
	hashed, err := bcrypt.GenerateFromPassword([]byte(param.Password), bcrypt.DefaultCost)
	if err != nil {
		err = fmt.Errorf("failed hashing password with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}
	logger.Info().Msg("hashed password")

	logger = logger.With().Str(log.KeyProcess, "inserting user").Logger()
	logger.Info().Msg("inserting user")
	user, err := s.queries.InsertUser(c, repository.InsertUserParams{
		Email:    param.Email,
		FullName: param.FullName,
		Password: string(hashed),
	})
	if err != nil {
		pgErr := &pgconn.PgError{}
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = fmt.Errorf("email=%s with error=%w", param.Email, inErr.ErrEmailTaken)
		} else {
			err = fmt.Errorf("failed inserting user with error=%w", err)
		}
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}
	logger = logger.With().Str(log.KeyUserID, user.ID.String()).Logger()
	logger.Info().Msg("inserted user")

	logger = logger.With().Str(log.KeyProcess, "issuing token").Logger()
	logger.Info().Msg("issuing token")
	token, err := identity.NewToken(s.config.SecretKey, user.ID)
	if err != nil {
		err = fmt.Errorf("failed issuing token with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}
	logger.Info().Msg("issued token")

	return response.Auth{User: user.Response(), Token: token}, nil
}

func (s UserService) Login(c context.Context, param request.Login) (response.Auth, error) {
	c, span := inOtel.Tracer.Start(c, "UserService Login")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "UserService Login").
		Str(log.KeyEmail, param.Email).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding user by email").Logger()
	logger.Info().Msg("finding user by email")
	user, err := s.queries.FindUserByEmail(c, param.Email)
	if err != nil {
		// Wrong email and wrong password are indistinguishable to the caller.
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("email=%s with error=%w", param.Email, inErr.ErrPasswordMismatch)
		} else {
			err = fmt.Errorf("failed finding user with error=%w", err)
		}
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}
	logger = logger.With().Str(log.KeyUserID, user.ID.String()).Logger()
	logger.Info().Msg("found user by email")

	logger = logger.With().Str(log.KeyProcess, "comparing password").Logger()
	logger.Info().Msg("comparing password")
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(param.Password)); err != nil {
		err = fmt.Errorf("failed comparing password with error=%w", inErr.ErrPasswordMismatch)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}
	logger.Info().Msg("compared password")

	logger = logger.With().Str(log.KeyProcess, "issuing token").Logger()
	logger.Info().Msg("issuing token")
	token, err := identity.NewToken(s.config.SecretKey, user.ID)
	if err != nil {
		err = fmt.Errorf("failed issuing token with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Auth{}, err
	}
	logger.Info().Msg("issued token")

	return response.Auth{User: user.Response(), Token: token}, nil
}

func (s UserService) FindUserById(
	c context.Context,
	userID uuid.UUID,
) (response.User, error) {
	c, span := inOtel.Tracer.Start(c, "UserService FindUserById")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "UserService FindUserById").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProcess, "finding user by id").
		Logger()

	logger.Info().Msg("finding user by id")
	user, err := s.queries.FindUserById(c, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = fmt.Errorf("userId=%s with error=%w", userID.String(), inErr.ErrNotFound)
		} else {
			err = fmt.Errorf("failed finding user with error=%w", err)
		}
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.User{}, err
	}
	logger.Info().Msg("found user by id")

	return user.Response(), nil
}
