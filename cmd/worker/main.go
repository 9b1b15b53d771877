package main

import (
	"context"
	"log"
	"os"

	"stylewiseapi/dbhelper"
	"stylewiseapi/services"
	"stylewiseapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/hibiken/asynq"
)

func runScheduler() {

	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}, &asynq.SchedulerOpts{

		LogLevel: asynq.InfoLevel,
	})

	scheduled := []struct {
		cron string
		task *asynq.Task
		desc string
	}{
		{
			cron: "0 9,18 * * *", // 9:00 AM and 6:00 PM daily
			task: tasks.NewOutfitAlertTask(),
			desc: "Outfit of the day notifications",
		},
	}

	for _, t := range scheduled {
		entryID, err := scheduler.Register(t.cron, t.task)
		if err != nil {
			log.Fatalf("Failed to register task '%s': %v", t.desc, err)
		}
		log.Printf("Registered task '%s' with ID: %s, cron: %s", t.desc, entryID, t.cron)
	}

	log.Println("Starting scheduler...")
	if err := scheduler.Run(); err != nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
}

func main() {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"analyze":  6,
			"generate": 3,
			"default":  1,
		}},
	)
	awsService := &services.AWSService{}
	llm := services.GoogleStylistLLM{}
	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("[Queue] Failed to initialize AWS provider: S3")
	}
	app, err := firebase.NewApp(context.Background(), nil)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
		return
	}
	mux := asynq.NewServeMux()
	db := dbhelper.SetupDB()
	mux.HandleFunc(tasks.TypeAnalyzeClothing, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleAnalyzeClothingTask(ctx, t, db, llm, awsService, app)
	})
	mux.HandleFunc(tasks.TypeMannequinGeneration, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleMannequinGenerationTask(ctx, t, db, llm, awsService, app)
	})
	mux.HandleFunc(tasks.TypeOutfitAlert, func(ctx context.Context, t *asynq.Task) error {
		return tasks.ScheduledOutfitAlertTask(ctx, t, db, app)
	})

	go runScheduler()
	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
